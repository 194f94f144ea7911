package reset

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

type Config struct {
	TTL           time.Duration
	BaseURL       string
	NotifyTimeout time.Duration
	SweepInterval time.Duration
}

// ConfigFromEnv reads RESET_* and NOTIFY_TIMEOUT.
func ConfigFromEnv() Config {
	return Config{
		TTL:           utilities.EnvDuration("RESET_TOKEN_TTL", 15*time.Minute),
		BaseURL:       utilities.EnvString("RESET_BASE_URL", "http://localhost:3000"),
		NotifyTimeout: utilities.EnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		SweepInterval: utilities.EnvDuration("RESET_SWEEP_INTERVAL", time.Minute),
	}
}
