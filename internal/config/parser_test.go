package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/emuget/internal/platform"
)

func TestParser_ParseString_Minimal(t *testing.T) {
	settings, err := NewParser(nil).ParseString(context.Background(), `emuget = {}`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	want := Default()
	if *settings != want {
		t.Errorf("settings = %+v, want defaults %+v", *settings, want)
	}
}

func TestParser_ParseString_Full(t *testing.T) {
	luaCode := `
		emuget = {
			download = {
				disable_ipv6 = true,
				remove_old_engine_log = false,
				auto_delete_after_install = true,
				engine_path = "/opt/aria2/aria2c",
				dir = "/data/downloads",
				max_download_limit = "8M",
			},
			network = {
				use_doh = true,
				proxy = "http://127.0.0.1:7890",
				use_mirror = false,
				mirror_file = "mirrors.yaml",
				user_agent = "emuget-test",
			},
			verify = {
				keyring = "keys/release.asc",
			},
		}
	`

	s, err := NewParser(nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	if !s.Download.DisableIPv6 || s.Download.RemoveOldEngineLog || !s.Download.AutoDeleteAfterInstall {
		t.Errorf("download bools = %+v", s.Download)
	}
	if s.Download.EnginePath != "/opt/aria2/aria2c" {
		t.Errorf("EnginePath = %q", s.Download.EnginePath)
	}
	if s.Download.Dir != "/data/downloads" {
		t.Errorf("Dir = %q", s.Download.Dir)
	}
	if s.Download.MaxDownloadLimit != "8M" {
		t.Errorf("MaxDownloadLimit = %q", s.Download.MaxDownloadLimit)
	}
	if !s.Network.UseDoH || s.Network.UseMirror {
		t.Errorf("network bools = %+v", s.Network)
	}
	if s.Network.Proxy != "http://127.0.0.1:7890" || !s.UsingProxy() {
		t.Errorf("Proxy = %q", s.Network.Proxy)
	}
	if s.Network.UserAgent != "emuget-test" {
		t.Errorf("UserAgent = %q", s.Network.UserAgent)
	}
	if s.Verify.Keyring != "keys/release.asc" {
		t.Errorf("Keyring = %q", s.Verify.Keyring)
	}
}

func TestParser_ParseString_PlatformConditional(t *testing.T) {
	luaCode := `
		emuget = {
			download = {
				engine_path = platform.when(platform.is_windows, "C:/aria2/aria2c.exe"),
				disable_ipv6 = platform.is_linux,
			},
		}
	`

	tests := []struct {
		name     string
		info     *platform.Info
		wantPath string
		wantIPv6 bool
	}{
		{"windows", &platform.Info{OS: "windows", Arch: "amd64"}, "C:/aria2/aria2c.exe", false},
		{"linux", &platform.Info{OS: "linux", Arch: "amd64"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(platform.StaticDetector{Info: tt.info})
			s, err := parser.ParseString(context.Background(), luaCode)
			if err != nil {
				t.Fatalf("ParseString() error = %v", err)
			}
			if s.Download.EnginePath != tt.wantPath {
				t.Errorf("EnginePath = %q, want %q", s.Download.EnginePath, tt.wantPath)
			}
			if s.Download.DisableIPv6 != tt.wantIPv6 {
				t.Errorf("DisableIPv6 = %v, want %v", s.Download.DisableIPv6, tt.wantIPv6)
			}
		})
	}
}

func TestParser_ParseString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
	}{
		{"syntax error", `emuget = {`, "Lua syntax error"},
		{"missing table", `other = {}`, "missing or invalid 'emuget' table"},
		{"wrong type", `emuget = "yes"`, "missing or invalid 'emuget' table"},
		{"bad proxy", `emuget = { network = { proxy = "not a url" } }`, "settings validation failed"},
		{"bad limit", `emuget = { download = { max_download_limit = "fast" } }`, "settings validation failed"},
		{"sandboxed os", `os.execute("true")`, "Lua syntax error"},
		{"sandboxed io", `io.open("/etc/passwd")`, "Lua syntax error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(nil).ParseString(context.Background(), tt.code)
			if err == nil {
				t.Fatal("expected error")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if parseErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", parseErr.Message, tt.wantMsg)
			}
			if strings.Contains(parseErr.Detail, "stack traceback") {
				t.Errorf("Detail should not contain traceback: %q", parseErr.Detail)
			}
		})
	}
}

func TestParser_Load(t *testing.T) {
	dir := t.TempDir()

	settingsCode := `
		emuget = {
			download = { dir = "artifacts", disable_ipv6 = false },
			network = { mirror_file = "mirrors.yaml" },
		}
	`
	if err := os.WriteFile(filepath.Join(dir, SettingsFileName), []byte(settingsCode), 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	envFile := "EMUGET_DISABLE_IPV6=true\nEMUGET_USER_AGENT=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, EnvFileName), []byte(envFile), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	// godotenv never overrides variables that are already set.
	t.Setenv("EMUGET_USER_AGENT", "from-env")
	// Clean up whatever the .env file adds to the process environment.
	t.Setenv("EMUGET_DISABLE_IPV6", "")
	os.Unsetenv("EMUGET_DISABLE_IPV6")

	s, err := NewParser(nil).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Download.Dir != filepath.Join(dir, "artifacts") {
		t.Errorf("Dir = %q, want resolved against %s", s.Download.Dir, dir)
	}
	if s.Network.MirrorFile != filepath.Join(dir, "mirrors.yaml") {
		t.Errorf("MirrorFile = %q", s.Network.MirrorFile)
	}
	if !s.Download.DisableIPv6 {
		t.Error("DisableIPv6 should come from the .env file")
	}
	if s.Network.UserAgent != "from-env" {
		t.Errorf("UserAgent = %q, want from-env", s.Network.UserAgent)
	}
}

func TestParser_Load_NoSettingsFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewParser(nil).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Download.Dir != filepath.Join(dir, "download") {
		t.Errorf("Dir = %q, want default under %s", s.Download.Dir, dir)
	}
	if !s.Network.UseMirror {
		t.Error("UseMirror should default to true")
	}
}

func TestParser_Load_InvalidSettings(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SettingsFileName), []byte(`emuget = 1`), 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	_, err := NewParser(nil).Load(context.Background(), dir)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
}
