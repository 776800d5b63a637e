package usbip

import (
	"iter"
	"regexp"
	"strings"
)

// deviceLine matches exportable device entries in `usbip list -r` output:
//
//	 1-11: SiGma Micro : Keyboard TRACER Gamma Ivory (1c4f:0002)
var deviceLine = regexp.MustCompile(`^[ \t]+\d+-[0-9.]+: `)

// usbIDs matches the trailing "(vendor:product)" of a device entry.
var usbIDs = regexp.MustCompile(`\s*\(([0-9a-fA-F]{4}):([0-9a-fA-F]{4})\)\s*$`)

// ExportableDevice is one device entry of a remote listing.
type ExportableDevice struct {
	BusID       string `json:"bus_id"`
	Description string `json:"description,omitempty"`
	VendorID    string `json:"vendor_id,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
}

// ParseListing yields the device entries of a `usbip list -r` output. Headers,
// blank lines and description lines are skipped.
func ParseListing(output string) iter.Seq[ExportableDevice] {
	return func(yield func(ExportableDevice) bool) {
		for line := range strings.Lines(output) {
			line = strings.TrimRight(line, "\r\n")
			if !deviceLine.MatchString(line) {
				continue
			}

			id, rest, _ := strings.Cut(line, ":")
			dev := ExportableDevice{BusID: strings.Join(strings.Fields(id), "")}

			if m := usbIDs.FindStringSubmatchIndex(rest); m != nil {
				dev.VendorID = strings.ToLower(rest[m[2]:m[3]])
				dev.ProductID = strings.ToLower(rest[m[4]:m[5]])
				rest = rest[:m[0]]
			}
			dev.Description = strings.TrimSpace(rest)

			if !yield(dev) {
				return
			}
		}
	}
}

// BusIDs yields the bus ids of a `usbip list -r` output.
func BusIDs(output string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for dev := range ParseListing(output) {
			if !yield(dev.BusID) {
				return
			}
		}
	}
}

// ExportedSet collects the bus ids of a listing into a set.
func ExportedSet(output string) map[string]struct{} {
	set := make(map[string]struct{})
	for id := range BusIDs(output) {
		set[id] = struct{}{}
	}
	return set
}
