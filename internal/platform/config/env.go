// Package config loads roomsync settings from the environment and reports
// fatal startup errors.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every env tag, so a field tagged
// `env:"ROOM_ID"` reads ROOMSYNC_ROOM_ID.
const EnvPrefix = "ROOMSYNC_"

// ParseEnv loads configuration from ROOMSYNC_* environment variables.
// target must be a pointer to a struct.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
