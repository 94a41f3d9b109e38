package config

import (
	"net/http"
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Store   Store   `yaml:"store"`
	Bus     Bus     `yaml:"bus"`
	Auth    Auth    `yaml:"auth"`
	Session Session `yaml:"session"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	BaseURL       string `yaml:"baseURL"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Store struct {
	Backend string `yaml:"backend"` // postgres, memory
	Cache   string `yaml:"cache"`   // memory, redis, memcached, none
}

type Bus struct {
	Backend string `yaml:"backend"` // redis, memory
	Queue   string `yaml:"queue"`
}

type Auth struct {
	Issuer   string `yaml:"issuer"`
	ClientID string `yaml:"clientID"`

	// Stock tokens are a development/test bypass. They are only consulted
	// when explicitly enabled and the table comes from this file alone;
	// nothing registers tokens at runtime.
	EnableStockTokens bool                  `yaml:"enableStockTokens"`
	StockTokens       map[string]StockClaim `yaml:"stockTokens"`
}

type StockClaim struct {
	Subject string `yaml:"sub"`
	Issuer  string `yaml:"iss"`
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Picture string `yaml:"picture"`
}

type Session struct {
	Secret         string `yaml:"secret"`
	TTLSeconds     int    `yaml:"ttlSeconds"`
	CookieName     string `yaml:"cookieName"`
	CookieDomain   string `yaml:"cookieDomain"`
	CookieSecure   bool   `yaml:"cookieSecure"`
	CookieHTTPOnly bool   `yaml:"cookieHttpOnly"`
	CookieSameSite string `yaml:"cookieSameSite"` // strict, lax, none
}

// TTL returns the configured session lifetime.
func (s Session) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// SameSite maps the configured string onto the http constant, defaulting to
// strict.
func (s Session) SameSite() http.SameSite {
	switch s.CookieSameSite {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Session.CookieName == "" {
		config.Session.CookieName = "activity_serve_auth"
	}
	if config.Session.TTLSeconds == 0 {
		config.Session.TTLSeconds = 86400 * 30
	}
	if config.Bus.Queue == "" {
		config.Bus.Queue = "activityserve:outbox"
	}

	return config, nil
}
