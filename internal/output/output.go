// Package output provides formatted terminal output for device operations.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Stats holds execution statistics for output.
type Stats interface {
	GetOK() int
	GetChanged() int
	GetFailed() int
	GetSkipped() int
	GetDuration() time.Duration
}

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// RunStart prints the banner for an apply run.
func (o *Output) RunStart(source string) {
	o.printf("\n%s %s\n", o.color(colorBold, "APPLY"), source)
	if o.debug {
		o.printf("%s\n", strings.Repeat("-", 60))
	}
}

// Recap prints the run summary.
func (o *Output) Recap(stats Stats) {
	o.printf("\n%s ", o.color(colorBold, "RECAP"))

	ok := o.color(colorGreen, fmt.Sprintf("ok=%d", stats.GetOK()))
	changed := o.color(colorYellow, fmt.Sprintf("changed=%d", stats.GetChanged()))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", stats.GetFailed()))
	skipped := o.color(colorCyan, fmt.Sprintf("skipped=%d", stats.GetSkipped()))

	o.printf("%s %s %s %s", ok, changed, failed, skipped)
	o.printf(" %s\n", o.color(colorGray, fmt.Sprintf("(%.2fs)", stats.GetDuration().Seconds())))
}

// DeviceResult prints the outcome of an operation on a device in a single line.
// Format: [indicator] name (target) status
func (o *Output) DeviceResult(name, target, status, message string) {
	indicator, statusColor := o.indicator(status)

	o.printf("  %s %s %s %s\n",
		o.color(statusColor, indicator),
		name,
		o.color(colorGray, fmt.Sprintf("(%s)", target)),
		o.color(statusColor, status))

	// Failures always carry their reason; other messages only in debug mode
	if message != "" && (o.debug || strings.HasPrefix(status, "failed")) {
		o.printf("    %s %s\n", o.color(colorGray, "→"), message)
	}
}

// DeviceState prints the observed share state of a device.
func (o *Output) DeviceState(name, target string, shared bool) {
	state, c := "unshared", colorCyan
	if shared {
		state, c = "shared", colorGreen
	}
	o.printf("  %s %-20s %s %s\n",
		o.color(c, "●"),
		name,
		o.color(c, fmt.Sprintf("%-8s", state)),
		o.color(colorGray, target))
}

// Table prints rows with aligned columns. The first row is the header.
func (o *Output) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i < len(widths) && i < len(row)-1 {
				cell = fmt.Sprintf("%-*s", widths[i], cell)
			}
			cells[i] = cell
		}
		line := "  " + strings.Join(cells, "  ")
		if r == 0 {
			line = o.color(colorBold, line)
		}
		o.printf("%s\n", strings.TrimRight(line, " "))
	}
}

func (o *Output) indicator(status string) (string, string) {
	switch {
	case strings.HasPrefix(status, "ok"):
		return "✓", colorGreen
	case strings.HasPrefix(status, "changed"):
		return "✓", colorYellow
	case strings.HasPrefix(status, "skipped"):
		return "○", colorCyan
	case strings.HasPrefix(status, "failed"):
		return "✗", colorRed
	default:
		return "?", colorGray
	}
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
