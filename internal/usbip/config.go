package usbip

import (
	"fmt"
	"sort"
	"strings"
)

// Configuration keys accepted by the driver.
const (
	KeyHost  = "host"
	KeyBusID = "bus_id"
)

// Config identifies one USB device on a remote host.
//
//	{"host": "usb_host.example.com", "bus_id": "1-11"}
type Config struct {
	// Host is the hostname or IP address of the machine the device is plugged into.
	Host string `json:"host" yaml:"host"`

	// BusID is the busid listed by `usbip list`. It is matched verbatim.
	BusID string `json:"bus_id" yaml:"bus_id"`
}

// Validate checks that both fields are set.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &ConfigurationError{Key: KeyHost, Reason: "is missing"}
	}
	if strings.TrimSpace(c.BusID) == "" {
		return &ConfigurationError{Key: KeyBusID, Reason: "is missing"}
	}
	return nil
}

// ParseConfig builds a Config from a raw driver configuration. The map must
// hold exactly the keys host and bus_id, both non-empty strings.
func ParseConfig(raw map[string]any) (Config, error) {
	var extra []string
	for k := range raw {
		if k != KeyHost && k != KeyBusID {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return Config{}, &ConfigurationError{Reason: fmt.Sprintf("unknown keys: %s", strings.Join(extra, ", "))}
	}

	host, err := requireString(raw, KeyHost)
	if err != nil {
		return Config{}, err
	}
	busID, err := requireString(raw, KeyBusID)
	if err != nil {
		return Config{}, err
	}

	return Config{Host: host, BusID: busID}, nil
}

func requireString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", &ConfigurationError{Key: key, Reason: "is missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConfigurationError{Key: key, Reason: fmt.Sprintf("must be a string, got %T", v)}
	}
	if strings.TrimSpace(s) == "" {
		return "", &ConfigurationError{Key: key, Reason: "cannot be empty"}
	}
	return s, nil
}
