package f

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

type HealthCheckResponse struct {
	Whoami     string                          `json:"whoami"`
	Status     string                          `json:"status"`
	Components map[string]HealthCheckComponent `json:"components"`
}

type HealthCheckComponent struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthCheck aggregates per-component checks into one response. The
// overall status degrades to DOWN as soon as any component fails.
type HealthCheck struct {
	service    string
	status     string
	components map[string]HealthCheckComponent
}

func NewHealthCheck(service string) HealthCheck {
	return HealthCheck{
		service:    service,
		status:     StatusUp,
		components: make(map[string]HealthCheckComponent),
	}
}

// Add runs the check immediately and records the component's status.
func (b *HealthCheck) Add(name string, tester func() error) {
	var message string
	status := StatusUp
	if err := tester(); err != nil {
		status = StatusDown
		message = err.Error()
		b.status = StatusDown
	}
	b.components[name] = HealthCheckComponent{
		Message: message,
		Status:  status,
	}
}

func (b *HealthCheck) Build() HealthCheckResponse {
	return HealthCheckResponse{
		Whoami:     b.service,
		Status:     b.status,
		Components: b.components,
	}
}
