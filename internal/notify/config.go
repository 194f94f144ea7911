package notify

import (
	"os"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ConfigFromEnv reads SMTP_*; EMAIL_USER / EMAIL_PASS are accepted as
// fallbacks for the credentials.
func ConfigFromEnv() Config {
	user := os.Getenv("SMTP_USERNAME")
	if user == "" {
		user = os.Getenv("EMAIL_USER")
	}
	pass := os.Getenv("SMTP_PASSWORD")
	if pass == "" {
		pass = os.Getenv("EMAIL_PASS")
	}
	return Config{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     utilities.EnvInt("SMTP_PORT", 587),
		Username: user,
		Password: pass,
		From:     os.Getenv("SMTP_FROM"),
	}
}

// Enabled reports whether an SMTP relay is configured.
func (c Config) Enabled() bool { return c.Host != "" }

func (c Config) fromAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}
