package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Http Http

	Cors CORS `validate:"required"`

	Meli        Meli        `validate:"required"`
	MercadoPago MercadoPago `validate:"required"`
	Labelary    Labelary    `validate:"required"`

	Frontend Frontend `validate:"required"`
	Session  Session
	Cache    Cache

	Postgres Postgres `validate:"required"`
}

type Http struct {
	Host string `validate:"required,hostname|ip"`
	Port string `validate:"required,gt=0,lte=65535"`
}

type CORS struct {
	AllowedOrigins []string `validate:"required,min=1,dive,url"`
}

type Meli struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	RedirectURI  string `validate:"required,url"`

	APIURL  string `validate:"required,url"`
	AuthURL string `validate:"required,url"`

	Timeout time.Duration `validate:"gte=0"`
}

type MercadoPago struct {
	AccessToken string `validate:"required"`
	BaseURL     string `validate:"required,url"`

	PlanName  string  `validate:"required"`
	PlanPrice float64 `validate:"required,gt=0"`
}

type Labelary struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gte=0"`
}

type Frontend struct {
	URL string `validate:"required,url"`
}

type Session struct {
	CookieName string
	TTL        time.Duration `validate:"gte=0"`
	Secure     bool
}

type Cache struct {
	Capacity int           `validate:"gte=1"`
	TTL      time.Duration `validate:"gte=0"`
}

type Postgres struct {
	Host     string `validate:"required,hostname|ip"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	DBName   string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`

	SSLMode string `validate:"required,oneof=disable require verify-ca verify-full"`

	MaxOpenConns    int           `validate:"gte=1"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
}

func New() Config {
	return Config{
		Env: env("ENV", "development"),

		Http: Http{
			Host: env("HOST", "localhost"),
			Port: env("PORT", "3001"),
		},

		Cors: CORS{
			AllowedOrigins: strings.Split(env("ALLOWED_CORS_ORIGINS", "http://localhost:5173"), ","),
		},

		Meli: Meli{
			ClientID:     env("ML_CLIENT_ID", ""),
			ClientSecret: env("ML_CLIENT_SECRET", ""),
			RedirectURI:  env("ML_REDIRECT_URI", ""),
			APIURL:       env("ML_API_URL", "https://api.mercadolibre.com"),
			AuthURL:      env("ML_AUTH_URL", "https://auth.mercadolivre.com.br"),
			Timeout:      envDuration("ML_TIMEOUT", 30*time.Second),
		},

		MercadoPago: MercadoPago{
			AccessToken: env("MP_ACCESS_TOKEN", ""),
			BaseURL:     env("MP_BASE_URL", "https://api.mercadopago.com"),
			PlanName:    env("MP_PLAN_NAME", "MeliPrint Pro - Mensal"),
			PlanPrice:   envFloat("MP_PLAN_PRICE", 29.90),
		},

		Labelary: Labelary{
			BaseURL: env("LABELARY_URL", "http://api.labelary.com"),
			Timeout: envDuration("LABELARY_TIMEOUT", 60*time.Second),
		},

		Frontend: Frontend{
			URL: env("FRONTEND_URL", "http://localhost:5173"),
		},

		Session: Session{
			CookieName: env("SESSION_COOKIE_NAME", "meliprint_session"),
			TTL:        envDuration("SESSION_TTL", 24*time.Hour),
			Secure:     env("ENV", "development") == "production",
		},

		Cache: Cache{
			Capacity: envInt("CACHE_CAPACITY", 1000),
			TTL:      envDuration("CACHE_TTL", 5*time.Minute),
		},

		Postgres: Postgres{
			Port:     envInt("POSTGRES_PORT", 5432),
			Host:     env("POSTGRES_HOST", "localhost"),
			DBName:   env("POSTGRES_DB", "meliprint"),
			User:     env("POSTGRES_USER", ""),
			Password: env("POSTGRES_PASSWORD", ""),

			SSLMode: env("POSTGRES_SSL_MODE", "disable"),

			MaxOpenConns:    envInt("POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("POSTGRES_MAX_IDLE_CONNS", 20),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},
	}
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if len(fallback) == 0 {
		return ""
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
