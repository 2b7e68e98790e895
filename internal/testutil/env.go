// Package testutil provides helpers for testing emuget in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// overrideVars are cleared so a developer's environment never leaks into
// settings loaded by tests.
var overrideVars = []string{
	"EMUGET_DISABLE_IPV6",
	"EMUGET_REMOVE_OLD_ENGINE_LOG",
	"EMUGET_AUTO_DELETE_AFTER_INSTALL",
	"EMUGET_USE_DOH",
	"EMUGET_USE_MIRROR",
	"EMUGET_ENGINE_PATH",
	"EMUGET_DOWNLOAD_DIR",
	"EMUGET_MAX_DOWNLOAD_LIMIT",
	"EMUGET_PROXY",
	"EMUGET_MIRROR_FILE",
	"EMUGET_USER_AGENT",
	"EMUGET_KEYRING",
	"EMUGET_DEBUG",
}

// SetupTestEnv points EMUGET_DIR at a fresh temp directory and clears all
// EMUGET_* overrides. It returns the emuget directory, whose "download"
// subdirectory already exists.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "emuget")
	t.Setenv("EMUGET_DIR", dir)
	for _, key := range overrideVars {
		t.Setenv(key, "")
	}

	if err := os.MkdirAll(filepath.Join(dir, "download"), 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", dir, err)
	}

	return dir
}
