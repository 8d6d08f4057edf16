package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindProvisioning    Kind = "provisioning"
	KindPoolCreation    Kind = "pool_creation"
	KindScriptExecution Kind = "script_execution"
	KindRoutingMiss     Kind = "routing_miss"
)

type DataSourceError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *DataSourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DataSourceError) Unwrap() error {
	return e.Cause
}

func Validation(format string, args ...any) error {
	return &DataSourceError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Provisioning(cause error, format string, args ...any) error {
	return &DataSourceError{Kind: KindProvisioning, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func PoolCreation(cause error, format string, args ...any) error {
	return &DataSourceError{Kind: KindPoolCreation, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func ScriptExecution(cause error, format string, args ...any) error {
	return &DataSourceError{Kind: KindScriptExecution, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func RoutingMiss(format string, args ...any) error {
	return &DataSourceError{Kind: KindRoutingMiss, Message: fmt.Sprintf(format, args...)}
}

// GetKind extracts the error kind, or an empty Kind for foreign errors.
func GetKind(err error) Kind {
	var de *DataSourceError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}
