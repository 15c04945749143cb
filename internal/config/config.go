package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port string `env:"PORT" env-default:"8095"`
	Env  string `env:"APP_ENV" env-default:"local"`

	MarketAPIURL        string        `env:"MARKET_API_URL" env-default:"http://localhost:8085/api"`
	MarketSessionCookie string        `env:"MARKET_SESSION_COOKIE"`
	MarketHTTPTimeout   time.Duration `env:"MARKET_HTTP_TIMEOUT" env-default:"20s"`

	DirectoryRefreshInterval time.Duration `env:"DIRECTORY_REFRESH_INTERVAL" env-default:"60s"`
	ViewRefreshInterval      time.Duration `env:"VIEW_REFRESH_INTERVAL" env-default:"5s"`
	NotifierPollInterval     time.Duration `env:"NOTIFIER_POLL_INTERVAL" env-default:"1s"`

	JWTIssuer     string        `env:"CONSOLE_JWT_ISSUER" env-default:"marketsync-console"`
	JWTAudience   string        `env:"CONSOLE_JWT_AUDIENCE" env-default:"marketsync-ui"`
	JWTSigningKey string        `env:"CONSOLE_JWT_SIGNING_KEY" env-default:"dev-insecure-key-change-me"`
	SessionTTL    time.Duration `env:"CONSOLE_SESSION_TTL" env-default:"12h"`
	PasscodeHash  string        `env:"CONSOLE_PASSCODE_HASH"`

	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"COOKIE_SECURE" env-default:"false"`

	StubPort string `env:"STUB_PORT" env-default:"8085"`
}

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.MarketAPIURL = strings.TrimRight(strings.TrimSpace(cfg.MarketAPIURL), "/")
	if cfg.DirectoryRefreshInterval <= 0 {
		cfg.DirectoryRefreshInterval = 60 * time.Second
	}
	if cfg.ViewRefreshInterval <= 0 {
		cfg.ViewRefreshInterval = 5 * time.Second
	}
	if cfg.NotifierPollInterval <= 0 {
		cfg.NotifierPollInterval = time.Second
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) StubAddr() string {
	return fmt.Sprintf(":%s", c.StubPort)
}

func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}
