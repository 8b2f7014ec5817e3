// Package bootstrap is the composition root's wiring glue: Config loads
// process environment into a struct the way teacher's
// common/os.go:SetConfigFromEnvVars does, and Service assembles every
// component (B, D, E, F, G, H, I) into a single running process the
// way teacher's internal/bootstrap/service.go does for one component.
package bootstrap

import (
	"fmt"

	"github.com/corebooks/erp-core/pkg/mconfig"
)

// Config is the top level configuration for the core, populated from
// environment variables.
type Config struct {
	EnvName  string `env:"ENV_NAME,default=local"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DBDSN                      string `env:"DB_DSN"`
	DBMaxConnections           int    `env:"DB_MAX_CONNECTIONS,default=10"`
	DBConnectionTimeoutSeconds int    `env:"DB_CONNECTION_TIMEOUT_SECONDS,default=5"`

	RedisAddress string `env:"REDIS_ADDRESS"`

	RabbitMQDSN      string `env:"RABBITMQ_DSN"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE,default=erpcore.events"`

	CasdoorEndpoint         string `env:"CASDOOR_ENDPOINT"`
	CasdoorClientID         string `env:"CASDOOR_CLIENT_ID"`
	CasdoorClientSecret     string `env:"CASDOOR_CLIENT_SECRET"`
	CasdoorOrganizationName string `env:"CASDOOR_ORGANIZATION_NAME"`
	CasdoorApplicationName  string `env:"CASDOOR_APPLICATION_NAME"`

	MetricsAddress string `env:"METRICS_ADDRESS,default=:9090"`
}

// LoadConfig populates a Config from the process environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := mconfig.FromEnv(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: loading config: %w", err)
	}

	return cfg, nil
}
