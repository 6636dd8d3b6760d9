// Package config builds the Viper instance shared by the CLI. It reads an
// optional .env file, a config file from the usual search paths, and
// FREEBIE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. FREEBIE_SERVER_PORT.
const EnvPrefix = "FREEBIE"

// SearchPaths are checked in order for config.{yaml,json,toml}.
var SearchPaths = []string{".", "/etc/freebie-watch/", "$HOME/.freebie-watch"}

// legacyEnv maps config keys to the unprefixed variable names earlier
// deployments used. The prefixed name always wins.
var legacyEnv = map[string]string{
	"telegram.token":                "TELEGRAM_BOT_TOKEN",
	"telegram.notification_chat_id": "NOTIFICATION_CHAT_ID",
	"telegram.topic_id":             "NOTIFICATION_TOPIC_ID",
	"schedule.spec":                 "CHECK_INTERVAL",
	"catalog.base_url":              "FREETP_URL",
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// New returns a Viper wired for environment overrides. When path is set the
// file must exist; otherwise the search paths are tried and a missing file is
// not an error.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	for _, p := range SearchPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
