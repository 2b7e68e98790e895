package platform

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if info.Arch == "" {
		t.Error("Arch should not be empty")
	}

	if runtime.GOOS != "linux" && info.Platform != "" {
		t.Errorf("Platform should be empty on non-Linux, got %v", info.Platform)
	}
	if info.Platform != "" && info.Family == "" {
		t.Error("Family should be set when Platform is set")
	}
}

func TestRealDetector_CancelledContext(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("distro detection only runs on linux")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// gopsutil may answer before noticing cancellation, so success is fine too.
	if _, err := NewDetector().Detect(ctx); err != nil && !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("Detect() error = %v, want cancellation error", err)
	}
}

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"amd64", "amd64"},
		{"x86_64", "amd64"},
		{"arm64", "arm64"},
		{"aarch64", "arm64"},
		{"riscv64", "riscv64"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := normalizeArch(tt.in); got != tt.want {
				t.Errorf("normalizeArch(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapFamily(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debian", FamilyDebian},
		{" Ubuntu ", FamilyDebian},
		{"centos", FamilyRHEL},
		{"manjaro", FamilyArch},
		{"slackware", FamilyUnknown},
		{"", FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := mapFamily(tt.in); got != tt.want {
				t.Errorf("mapFamily(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInfo_ExecutableName(t *testing.T) {
	win := &Info{OS: "windows"}
	if got := win.ExecutableName("aria2c"); got != "aria2c.exe" {
		t.Errorf("windows ExecutableName = %q, want aria2c.exe", got)
	}

	linux := &Info{OS: "linux"}
	if got := linux.ExecutableName("aria2c"); got != "aria2c" {
		t.Errorf("linux ExecutableName = %q, want aria2c", got)
	}
}
