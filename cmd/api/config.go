package main

import (
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const (
	backendPostgres = "postgres"
	backendRedis    = "redis"
	backendMemory   = "memory"
)

type appConfig struct {
	Port         string
	StoreBackend string
	TokenStore   string
	AutoMigrate  bool
	SnowflakeID  int64
}

func appConfigFromEnv() appConfig {
	store := strings.ToLower(utilities.EnvString("STORE_BACKEND", backendPostgres))
	return appConfig{
		Port:         utilities.EnvString("PORT", "3000"),
		StoreBackend: store,
		TokenStore:   strings.ToLower(utilities.EnvString("TOKEN_STORE", store)),
		AutoMigrate:  utilities.EnvBool("AUTO_MIGRATE", true),
		SnowflakeID:  utilities.SnowflakeNodeFromEnv(),
	}
}

func (c appConfig) validate() error {
	switch c.StoreBackend {
	case backendPostgres, backendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.TokenStore {
	case backendPostgres, backendRedis, backendMemory:
	default:
		return fmt.Errorf("unsupported TOKEN_STORE %q", c.TokenStore)
	}
	return nil
}

func (c appConfig) needsPostgres() bool {
	return c.StoreBackend == backendPostgres || c.TokenStore == backendPostgres
}
