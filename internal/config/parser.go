package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/emuget/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser evaluates settings files with the host platform exposed to Lua.
type Parser struct {
	detector platform.Detector
	logger   Logger
}

// NewParser creates a settings parser. detector may be nil, in which case
// the platform table is not injected.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector, logger: defaultLogger()}
}

// WithLogger sets the logger used for diagnostics.
func (p *Parser) WithLogger(logger Logger) *Parser {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// ParseError represents a settings parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// ParseString evaluates luaCode and extracts settings on top of Default().
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Settings, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  trimTraceback(err.Error()),
		}
	}

	return p.extractSettings(L)
}

// ParseFile reads and evaluates a settings file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	p.logger.Debug("parsing settings", "path", path)
	return p.ParseString(ctx, string(data))
}

// Load builds the effective settings for dir: the .env file, then
// settings.lua when present, then EMUGET_* overrides. Relative paths are
// resolved against dir and the result is validated.
func (p *Parser) Load(ctx context.Context, dir string) (*Settings, error) {
	if err := LoadEnvFile(filepath.Join(dir, EnvFileName)); err != nil {
		return nil, err
	}

	settingsPath := filepath.Join(dir, SettingsFileName)
	settings, err := p.ParseFile(ctx, settingsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		p.logger.Debug("no settings file, using defaults", "path", settingsPath)
		defaults := Default()
		settings = &defaults
	}

	if err := ApplyEnv(settings); err != nil {
		return nil, err
	}

	settings.ResolvePaths(dir)

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// extractSettings reads the global "emuget" table. A missing table is an
// error; missing sub-tables and keys keep their defaults.
func (p *Parser) extractSettings(L *lua.LState) (*Settings, error) {
	root := L.GetGlobal("emuget")
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'emuget' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	table := root.(*lua.LTable)

	settings := Default()

	if t, ok := table.RawGetString("download").(*lua.LTable); ok {
		d := &settings.Download
		readBool(t, "disable_ipv6", &d.DisableIPv6)
		readBool(t, "remove_old_engine_log", &d.RemoveOldEngineLog)
		readBool(t, "auto_delete_after_install", &d.AutoDeleteAfterInstall)
		readString(t, "engine_path", &d.EnginePath)
		readString(t, "dir", &d.Dir)
		readString(t, "max_download_limit", &d.MaxDownloadLimit)
	}

	if t, ok := table.RawGetString("network").(*lua.LTable); ok {
		n := &settings.Network
		readBool(t, "use_doh", &n.UseDoH)
		readString(t, "proxy", &n.Proxy)
		readBool(t, "use_mirror", &n.UseMirror)
		readString(t, "mirror_file", &n.MirrorFile)
		readString(t, "user_agent", &n.UserAgent)
	}

	if t, ok := table.RawGetString("verify").(*lua.LTable); ok {
		readString(t, "keyring", &settings.Verify.Keyring)
	}

	if err := settings.Validate(); err != nil {
		return nil, &ParseError{
			Message: "settings validation failed",
			Detail:  err.Error(),
		}
	}

	p.logger.Debug("settings parsed",
		"disable_ipv6", settings.Download.DisableIPv6,
		"use_doh", settings.Network.UseDoH,
		"proxy", settings.Network.Proxy != "",
	)

	return &settings, nil
}

// readBool stores a Lua boolean field into dst. Other types (including nil
// produced by platform.when) leave dst unchanged.
func readBool(t *lua.LTable, key string, dst *bool) {
	if v, ok := t.RawGetString(key).(lua.LBool); ok {
		*dst = bool(v)
	}
}

// readString stores a Lua string field into dst.
func readString(t *lua.LTable, key string, dst *string) {
	if v, ok := t.RawGetString(key).(lua.LString); ok {
		*dst = string(v)
	}
}

// trimTraceback drops the Lua stack traceback from an error message.
func trimTraceback(detail string) string {
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		return strings.TrimSpace(detail[:idx])
	}
	return detail
}
