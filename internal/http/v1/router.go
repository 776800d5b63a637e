package v1

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/eugenetaranov/usbshare/internal/share"
)

// DeviceSource resolves inventory devices. *fleet.Fleet satisfies it.
type DeviceSource interface {
	Names() []string
	Driver(name string) (string, error)
	Device(name string) (share.Device, error)
}

// Router returns the chi.Router for REST API v1.
func Router(devices DeviceSource) chi.Router {
	r := chi.NewRouter()
	h := &handler{devices: devices}

	r.Get("/devices", h.listDevices)
	r.Get("/devices/{name}", h.getDevice)
	r.Put("/devices/{name}/share", h.setShare(true))
	r.Delete("/devices/{name}/share", h.setShare(false))

	return r
}

type handler struct {
	devices DeviceSource
}

func (h *handler) open(ctx context.Context, name string) (share.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.devices.Device(name)
}
