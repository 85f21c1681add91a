// Package config wires up viper for CLI-level settings: flag defaults
// that can be overridden by environment variables or a user config
// file, never by the project's own .beads/config.json (that one belongs
// to the template registry, not the CLI).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the global viper instance: defaults, environment
// variable binding (BEADS_* overrides any key), and an optional
// $HOME/.config/beads/cli.yaml user config file.
func Initialize() error {
	v = viper.New()

	v.SetDefault("json", false)
	v.SetDefault("actor", "")
	v.SetDefault("db", "")
	v.SetDefault("lock-timeout", 30*time.Second)

	v.SetEnvPrefix("BEADS")
	v.AutomaticEnv()

	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "beads"))
		v.SetConfigName("cli")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return err
			}
		}
	}
	return nil
}

func GetBool(key string) bool       { return v.GetBool(key) }
func GetString(key string) string   { return v.GetString(key) }
func GetDuration(key string) time.Duration { return v.GetDuration(key) }
