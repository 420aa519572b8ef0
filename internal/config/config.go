package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type DB struct {
	URL             string        `env:"DATABASE_URL,required"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"16"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"8"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
}

type HTTP struct {
	Port string `env:"PORT" envDefault:"8080"`
}

type Auth struct {
	// ServiceToken is a preregistered session token with full rights,
	// used by sibling services that have no login flow.
	ServiceToken string `env:"AUTH_SERVICE_TOKEN"`
}

type Kafka struct {
	BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	Topic            string `env:"KAFKA_CHANGE_TOPIC" envDefault:"change-history"`
}

type History struct {
	// DefaultListLimit is the page size used when the client sends none,
	// replacing the ambient per-session list limit of the legacy system.
	DefaultListLimit int      `env:"DEFAULT_LIST_LIMIT" envDefault:"20"`
	TrackableTypes   []string `env:"TRACKABLE_TYPES" envSeparator:"," envDefault:"Computer,Monitor,Printer,Software,Ticket,User"`
}

type Config struct {
	DB      DB
	HTTP    HTTP
	Auth    Auth
	Kafka   Kafka
	History History
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
