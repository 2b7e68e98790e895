package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/emuget/internal/units"
)

const (
	// SettingsFileName is the settings file looked up inside the emuget directory.
	SettingsFileName = "settings.lua"
	// EnvFileName is the optional dotenv file loaded before environment overrides.
	EnvFileName = ".env"

	// EnvDir overrides the emuget directory (default: ~/.config/emuget).
	EnvDir = "EMUGET_DIR"
	// EnvDebug enables debug logging in the CLI when non-empty.
	EnvDebug = "EMUGET_DEBUG"
)

// Settings are the persisted, read-only preferences consumed by the
// download subsystem at engine start and per transfer.
type Settings struct {
	Download DownloadSettings
	Network  NetworkSettings
	Verify   VerifySettings
}

// DownloadSettings configure the engine and the output directory.
type DownloadSettings struct {
	// DisableIPv6 passes --disable-ipv6 to the engine.
	DisableIPv6 bool
	// RemoveOldEngineLog deletes the previous engine log before launch.
	RemoveOldEngineLog bool
	// AutoDeleteAfterInstall lets install flows drop artifacts once copied.
	AutoDeleteAfterInstall bool
	// EnginePath points at a specific aria2c executable; empty means discover.
	EnginePath string
	// Dir is the default download directory.
	Dir string
	// MaxDownloadLimit caps fallback bandwidth, e.g. "8M". Empty is unlimited.
	MaxDownloadLimit string
}

// NetworkSettings configure proxies and mirrors.
type NetworkSettings struct {
	// UseDoH makes the engine resolve through public DNS servers.
	UseDoH bool
	// Proxy is an http(s) proxy URL used for remote traffic.
	Proxy string
	// UseMirror enables URL rewriting through the mirror table.
	UseMirror bool
	// MirrorFile is a YAML mirror table; relative paths resolve against the emuget dir.
	MirrorFile string
	// UserAgent overrides the default browser user agent.
	UserAgent string
}

// VerifySettings configure artifact verification.
type VerifySettings struct {
	// Keyring is an OpenPGP public keyring used for detached signatures.
	Keyring string
}

// Default returns settings matching a fresh install.
func Default() Settings {
	return Settings{
		Download: DownloadSettings{
			RemoveOldEngineLog: true,
			Dir:                "download",
		},
		Network: NetworkSettings{
			UseMirror: true,
		},
	}
}

// ValidationError describes an invalid settings field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks values that would otherwise fail late, at engine launch
// or first transfer.
func (s *Settings) Validate() error {
	if s.Download.Dir == "" {
		return &ValidationError{Field: "download.dir", Message: "must not be empty"}
	}

	if s.Network.Proxy != "" {
		u, err := url.Parse(s.Network.Proxy)
		if err != nil {
			return &ValidationError{Field: "network.proxy", Message: err.Error()}
		}
		if u.Scheme == "" || u.Host == "" {
			return &ValidationError{Field: "network.proxy", Message: "must be an absolute URL like http://host:port"}
		}
	}

	if s.Download.MaxDownloadLimit != "" {
		if _, err := units.ParseSize(s.Download.MaxDownloadLimit); err != nil {
			return &ValidationError{Field: "download.max_download_limit", Message: err.Error()}
		}
	}

	return nil
}

// ResolvePaths makes relative paths absolute against dir.
func (s *Settings) ResolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	s.Download.Dir = resolve(s.Download.Dir)
	s.Download.EnginePath = resolve(s.Download.EnginePath)
	s.Network.MirrorFile = resolve(s.Network.MirrorFile)
	s.Verify.Keyring = resolve(s.Verify.Keyring)
}

// UsingProxy reports whether a proxy is configured.
func (s *Settings) UsingProxy() bool {
	return s.Network.Proxy != ""
}

// Dir returns the emuget directory: $EMUGET_DIR, else ~/.config/emuget.
func Dir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "emuget"), nil
}
