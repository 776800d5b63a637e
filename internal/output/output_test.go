package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNewOutput(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	if o.w != &buf {
		t.Error("writer not set correctly")
	}
	if !o.useColor {
		t.Error("expected useColor to be true by default")
	}
}

func TestColorOutput(t *testing.T) {
	t.Run("color enabled", func(t *testing.T) {
		o := New(&bytes.Buffer{})

		result := o.color(colorGreen, "test")
		if !strings.Contains(result, "\033[32m") || !strings.Contains(result, "\033[0m") {
			t.Errorf("expected color codes in %q", result)
		}
	})

	t.Run("color disabled", func(t *testing.T) {
		o := New(&bytes.Buffer{})
		o.SetColor(false)

		if result := o.color(colorGreen, "test"); result != "test" {
			t.Errorf("expected plain 'test', got %q", result)
		}
	})
}

func TestDeviceResult(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		debug   bool
		message string
		wantIn  []string
		wantOut []string
	}{
		{
			name:   "ok status",
			status: "ok",
			wantIn: []string{"✓", "keyboard", "(usbip://h1/1-11)", "ok"},
		},
		{
			name:   "changed status",
			status: "changed",
			wantIn: []string{"✓", "keyboard", "changed"},
		},
		{
			name:   "skipped status",
			status: "skipped (dry run)",
			wantIn: []string{"○", "skipped (dry run)"},
		},
		{
			name:    "failed shows message without debug",
			status:  "failed",
			message: "usbipd is not running on h1",
			wantIn:  []string{"✗", "→", "usbipd is not running on h1"},
		},
		{
			name:    "message hidden without debug",
			status:  "ok",
			message: "already shared",
			wantOut: []string{"already shared"},
		},
		{
			name:    "debug with message",
			status:  "ok",
			debug:   true,
			message: "already shared",
			wantIn:  []string{"→", "already shared"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			o := New(&buf)
			o.SetColor(false)
			o.SetDebug(tt.debug)

			o.DeviceResult("keyboard", "usbip://h1/1-11", tt.status, tt.message)

			output := buf.String()
			for _, want := range tt.wantIn {
				if !strings.Contains(output, want) {
					t.Errorf("expected output to contain %q, got %q", want, output)
				}
			}
			for _, unwanted := range tt.wantOut {
				if strings.Contains(output, unwanted) {
					t.Errorf("expected output to not contain %q, got %q", unwanted, output)
				}
			}
		})
	}
}

func TestDeviceState(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.DeviceState("keyboard", "usbip://h1/1-11", true)
	o.DeviceState("mouse", "usbip://h1/1-12", false)

	output := buf.String()
	for _, want := range []string{"keyboard", "shared", "mouse", "unshared", "usbip://h1/1-12"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.Table([][]string{
		{"BUSID", "VENDOR:PRODUCT", "DESCRIPTION"},
		{"1-11", "1c4f:0002", "SiGma Micro : Keyboard"},
		{"1-2", "046d:c52b", "Logitech"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if idx := strings.Index(lines[1], "1c4f:0002"); idx != strings.Index(lines[0], "VENDOR:PRODUCT") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.Info("test %s %d", "message", 42)
	o.Warn("warning %s", "here")
	o.Error("error: %v", "failed")
	o.Debug("hidden %s", "debug")

	output := buf.String()
	for _, want := range []string{"INFO test message 42", "WARN warning here", "ERROR error: failed"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}
	if strings.Contains(output, "DEBUG") {
		t.Error("expected no DEBUG output when debug disabled")
	}
}

// mockStats implements the Stats interface for testing
type mockStats struct {
	ok, changed, failed, skipped int
	duration                     time.Duration
}

func (m *mockStats) GetOK() int                 { return m.ok }
func (m *mockStats) GetChanged() int            { return m.changed }
func (m *mockStats) GetFailed() int             { return m.failed }
func (m *mockStats) GetSkipped() int            { return m.skipped }
func (m *mockStats) GetDuration() time.Duration { return m.duration }

func TestRecap(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.Recap(&mockStats{
		ok:       5,
		changed:  3,
		failed:   1,
		skipped:  2,
		duration: 2500 * time.Millisecond,
	})

	output := buf.String()
	for _, want := range []string{"RECAP", "ok=5", "changed=3", "failed=1", "skipped=2", "2.50s"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got %q", want, output)
		}
	}
}
