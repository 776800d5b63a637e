package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/eugenetaranov/usbshare/internal/fleet"
	"github.com/eugenetaranov/usbshare/internal/usbip"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var cfgErr *usbip.ConfigurationError
	var connErr *usbip.ConnectionError
	var cmdErr *usbip.CommandError

	switch {
	case errors.Is(err, fleet.ErrUnknownDevice):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "configuration_error"
	case errors.As(err, &connErr):
		return http.StatusBadGateway, "connection_error"
	case errors.As(err, &cmdErr):
		switch {
		case errors.Is(err, usbip.ErrDaemonNotRunning):
			return http.StatusBadGateway, "daemon_not_running"
		case errors.Is(err, usbip.ErrModuleNotLoaded):
			return http.StatusBadGateway, "module_not_loaded"
		default:
			return http.StatusBadGateway, "command_failed"
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}
