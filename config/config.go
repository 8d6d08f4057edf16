package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	f "github.com/kestrel-labs/tenancy-go/core"
)

// Settings is the process-level configuration of a multi tenant datasource.
type Settings struct {
	Env string `envconfig:"ENV" default:"dev"`
	// TenantProvider is a provider locator: file://, http(s):// or base64:.
	TenantProvider string `envconfig:"TENANT_PROVIDER"`
	// RedisUrl enables the distributed provisioning lock when set.
	RedisUrl  string `envconfig:"REDIS_URL"`
	OpsAddr   string `envconfig:"OPS_ADDR" default:":8911"`
	KeyPrefix string `envconfig:"DS_KEY_PREFIX"`
	Pool      f.PoolOptions
}

func LoadSettings() Settings {
	var settings Settings
	Load(&settings)
	return settings
}

func Load(cfg any) {
	env := os.Getenv("ENV")
	if env != "production" && env != "prod" {
		err := godotenv.Load(".env")
		if err != nil {
			log.Warnf("unable to load .env file: %v", err)
		}
	}
	err := envconfig.Process("", cfg)
	if err != nil {
		log.Fatal(err)
	}
}
