package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// APIBaseURL is the backend REST origin every relayed request goes to.
	APIBaseURL string
	// RealtimeURL is the backend messaging endpoint the chat bridge dials.
	RealtimeURL string

	AllowedOrigins []string

	RateLimitPerSec int
	RateLimitBurst  int
}

func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	apiBase := os.Getenv("API_BASE_URL")
	if apiBase == "" {
		apiBase = "http://localhost:4000"
	}

	realtimeURL := os.Getenv("REALTIME_URL")
	if realtimeURL == "" {
		realtimeURL = "ws://localhost:4000/rt"
	}

	origins := []string{"http://localhost:3000"}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins = origins[:0]
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	perSec := 20
	if v := os.Getenv("RATE_LIMIT_PER_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perSec = n
		}
	}
	burst := 40
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}

	return Config{
		Port:            port,
		Env:             env,
		APIBaseURL:      apiBase,
		RealtimeURL:     realtimeURL,
		AllowedOrigins:  origins,
		RateLimitPerSec: perSec,
		RateLimitBurst:  burst,
	}
}
