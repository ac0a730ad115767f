package session

import (
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultInstanceName is used when no override and no default.toml name the
// active instance.
const DefaultInstanceName = "main"

type defaultInstance struct {
	Instance string `toml:"instance"`
}

// Resolve determines the active instance name using precedence:
// 1. flagOverride (--instance flag)
// 2. ~/.wacore/default.toml's "instance" key
// 3. DefaultInstanceName
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	var cfg defaultInstance
	if _, err := os.Stat(DefaultInstanceConfigPath()); err == nil {
		if _, err := toml.DecodeFile(DefaultInstanceConfigPath(), &cfg); err == nil && cfg.Instance != "" {
			return cfg.Instance
		}
	}
	return DefaultInstanceName
}
