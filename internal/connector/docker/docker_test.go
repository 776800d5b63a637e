package docker

import (
	"testing"
)

func TestBuildExecArgs(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{
			name: "plain",
			want: []string{"exec", "-i", "usbipd", "/bin/sh", "-c", "sudo usbip list -r localhost"},
		},
		{
			name: "user and sorted env",
			opts: []Option{WithUser("root"), WithEnv("LANG", "C"), WithEnv("A", "1")},
			want: []string{"exec", "-i", "-u", "root", "-e", "A=1", "-e", "LANG=C", "usbipd", "/bin/sh", "-c", "sudo usbip list -r localhost"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("usbipd", tt.opts...)
			got := c.buildExecArgs("sudo usbip list -r localhost")
			if len(got) != len(tt.want) {
				t.Fatalf("buildExecArgs() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("arg %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestString(t *testing.T) {
	if got := New("usbipd").String(); got != "docker://usbipd" {
		t.Errorf("String() = %q", got)
	}
	if got := New("usbipd", WithUser("root")).String(); got != "docker://root@usbipd" {
		t.Errorf("String() = %q", got)
	}
}

func TestConnectMissingBinary(t *testing.T) {
	c := New("usbipd", WithBinary("definitely-not-a-docker-binary"))
	if err := c.Connect(t.Context()); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestIsDockerError(t *testing.T) {
	tests := []struct {
		code   int
		stderr string
		want   bool
	}{
		{1, "Error response from daemon: No such container: usbipd\n", true},
		{126, "Error: cannot exec\n", true},
		{1, "usbip: error: could not connect to localhost:3240\n", false},
		{127, "sh: usbip: not found\n", false},
	}

	for _, tt := range tests {
		if got := isDockerError(tt.code, tt.stderr); got != tt.want {
			t.Errorf("isDockerError(%d, %q) = %v, want %v", tt.code, tt.stderr, got, tt.want)
		}
	}
}
