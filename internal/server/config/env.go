package config

import "github.com/ilyakaznacheev/cleanenv"

// parseEnv overlays VIPCLUB_* environment variables onto config. Unset
// variables leave the current value alone.
func parseEnv(config *Config) error {
	return cleanenv.ReadEnv(config)
}
