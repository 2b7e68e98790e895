package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win over the file. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides s with EMUGET_* environment variables.
func ApplyEnv(s *Settings) error {
	bools := []struct {
		key string
		dst *bool
	}{
		{"EMUGET_DISABLE_IPV6", &s.Download.DisableIPv6},
		{"EMUGET_REMOVE_OLD_ENGINE_LOG", &s.Download.RemoveOldEngineLog},
		{"EMUGET_AUTO_DELETE_AFTER_INSTALL", &s.Download.AutoDeleteAfterInstall},
		{"EMUGET_USE_DOH", &s.Network.UseDoH},
		{"EMUGET_USE_MIRROR", &s.Network.UseMirror},
	}
	for _, b := range bools {
		v := os.Getenv(b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"EMUGET_ENGINE_PATH", &s.Download.EnginePath},
		{"EMUGET_DOWNLOAD_DIR", &s.Download.Dir},
		{"EMUGET_MAX_DOWNLOAD_LIMIT", &s.Download.MaxDownloadLimit},
		{"EMUGET_PROXY", &s.Network.Proxy},
		{"EMUGET_MIRROR_FILE", &s.Network.MirrorFile},
		{"EMUGET_USER_AGENT", &s.Network.UserAgent},
		{"EMUGET_KEYRING", &s.Verify.Keyring},
	}
	for _, sv := range strs {
		if v := os.Getenv(sv.key); v != "" {
			*sv.dst = v
		}
	}

	return nil
}
