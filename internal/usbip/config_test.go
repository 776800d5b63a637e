package usbip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/usbshare/internal/connector/connectortest"
	"github.com/eugenetaranov/usbshare/internal/share"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    Config
		wantKey string
		wantErr string
	}{
		{
			name: "valid",
			raw:  map[string]any{"host": "usb_host.example.com", "bus_id": "1-11"},
			want: Config{Host: "usb_host.example.com", BusID: "1-11"},
		},
		{
			name:    "missing host",
			raw:     map[string]any{"bus_id": "1-11"},
			wantKey: KeyHost,
			wantErr: "is missing",
		},
		{
			name:    "missing bus_id",
			raw:     map[string]any{"host": "h1"},
			wantKey: KeyBusID,
			wantErr: "is missing",
		},
		{
			name:    "empty bus_id",
			raw:     map[string]any{"host": "h1", "bus_id": "  "},
			wantKey: KeyBusID,
			wantErr: "cannot be empty",
		},
		{
			name:    "non-string bus_id",
			raw:     map[string]any{"host": "h1", "bus_id": 11},
			wantKey: KeyBusID,
			wantErr: "must be a string",
		},
		{
			name:    "extra keys",
			raw:     map[string]any{"host": "h1", "bus_id": "1-11", "port": 22, "password": "x"},
			wantErr: "unknown keys: password, port",
		},
		{
			name:    "nil",
			raw:     nil,
			wantKey: KeyHost,
			wantErr: "is missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig(tt.raw)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDriverRegistered(t *testing.T) {
	d := share.Lookup(DriverName)
	require.NotNil(t, d)

	host, err := d.Host(map[string]any{"host": "h1", "bus_id": "1-11"})
	require.NoError(t, err)
	assert.Equal(t, "h1", host)

	dev, err := d.Open(map[string]any{"host": "h1", "bus_id": "1-11"}, connectortest.New("h1"))
	require.NoError(t, err)
	assert.Equal(t, "usbip://h1/1-11", dev.String())

	_, err = d.Open(map[string]any{"host": "h1"}, connectortest.New("h1"))
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
