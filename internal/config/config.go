// Package config loads process settings from flags, environment, an optional
// .env file and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eugenetaranov/usbshare/internal/connector"
)

// EnvPrefix prefixes every environment variable, e.g. USBSHARE_SSH_USER.
const EnvPrefix = "USBSHARE"

// Setting keys.
const (
	KeySSHUser        = "ssh_user"
	KeySSHPort        = "ssh_port"
	KeySSHKeyFile     = "ssh_key_file"
	KeySSHPassword    = "ssh_password"
	KeyKnownHosts     = "ssh_known_hosts"
	KeyInsecureHost   = "ssh_insecure_ignore_host_key"
	KeyConnectTimeout = "connect_timeout"
	KeyCommandTimeout = "command_timeout"
	KeyInventory      = "inventory"
	KeyListen         = "listen"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
)

// flagKeys maps CLI flag names to setting keys.
var flagKeys = map[string]string{
	"ssh-user":        KeySSHUser,
	"ssh-port":        KeySSHPort,
	"ssh-key":         KeySSHKeyFile,
	"known-hosts":     KeyKnownHosts,
	"insecure":        KeyInsecureHost,
	"connect-timeout": KeyConnectTimeout,
	"command-timeout": KeyCommandTimeout,
	"inventory":       KeyInventory,
	"listen":          KeyListen,
	"log-level":       KeyLogLevel,
	"log-format":      KeyLogFormat,
}

// Settings holds process-wide settings. They are passed explicitly to the
// components that need them.
type Settings struct {
	SSHUser               string
	SSHPort               int
	SSHKeyFile            string
	SSHPassword           string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool

	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	Inventory string
	Listen    string
	LogLevel  string
	LogFormat string

	// File is the config file that was read, if any.
	File string
}

// Connector returns the connector configuration for host.
func (s *Settings) Connector(host string) connector.Config {
	return connector.Config{
		Host:                  host,
		User:                  s.SSHUser,
		Port:                  s.SSHPort,
		KeyFile:               s.SSHKeyFile,
		Password:              s.SSHPassword,
		KnownHostsFile:        s.KnownHostsFile,
		InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
		Timeout:               s.ConnectTimeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeySSHUser, "")
	v.SetDefault(KeySSHPort, 22)
	v.SetDefault(KeySSHKeyFile, "")
	v.SetDefault(KeySSHPassword, "")
	v.SetDefault(KeyKnownHosts, "")
	v.SetDefault(KeyInsecureHost, false)
	v.SetDefault(KeyConnectTimeout, 10*time.Second)
	v.SetDefault(KeyCommandTimeout, 30*time.Second)
	v.SetDefault(KeyInventory, "usbshare.inventory.yaml")
	v.SetDefault(KeyListen, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads settings. path selects an explicit config file; when empty,
// usbshare.{yaml,json,toml} is searched in the working directory,
// ~/.config/usbshare and /etc/usbshare. Only flags that were set on the
// command line override other sources.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("usbshare")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/usbshare")
		v.AddConfigPath("/etc/usbshare")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	s := &Settings{
		SSHUser:               v.GetString(KeySSHUser),
		SSHPort:               v.GetInt(KeySSHPort),
		SSHKeyFile:            v.GetString(KeySSHKeyFile),
		SSHPassword:           v.GetString(KeySSHPassword),
		KnownHostsFile:        v.GetString(KeyKnownHosts),
		InsecureIgnoreHostKey: v.GetBool(KeyInsecureHost),
		ConnectTimeout:        v.GetDuration(KeyConnectTimeout),
		CommandTimeout:        v.GetDuration(KeyCommandTimeout),
		Inventory:             v.GetString(KeyInventory),
		Listen:                v.GetString(KeyListen),
		LogLevel:              v.GetString(KeyLogLevel),
		LogFormat:             v.GetString(KeyLogFormat),
		File:                  v.ConfigFileUsed(),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks setting ranges.
func (s *Settings) Validate() error {
	if s.SSHPort < 1 || s.SSHPort > 65535 {
		return fmt.Errorf("invalid %s %d", KeySSHPort, s.SSHPort)
	}
	if s.ConnectTimeout < 0 || s.CommandTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid %s '%s': must be console or json", KeyLogFormat, s.LogFormat)
	}
	return nil
}

// loadDotEnv loads path into the environment if it exists. Variables that are
// already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Debug().Str("dotenv", path).Msg("loaded .env")
	return nil
}
