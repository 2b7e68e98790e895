package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/emuget/internal/platform"
)

// engineName is the executable base name without extension.
const engineName = "aria2c"

// locate finds the engine executable: the configured path, then next to
// the running executable (module/ first), then PATH.
func locate(ctx context.Context, cfg Config, exeDir string) (string, error) {
	if cfg.EnginePath != "" {
		if isFile(cfg.EnginePath) {
			return cfg.EnginePath, nil
		}
		return "", fmt.Errorf("%w: configured engine %s not found", ErrUnavailable, cfg.EnginePath)
	}

	detector := cfg.Detector
	if detector == nil {
		detector = platform.NewDetector()
	}
	info, err := detector.Detect(ctx)
	if err != nil {
		return "", fmt.Errorf("detect platform: %w", err)
	}
	name := info.ExecutableName(engineName)

	if exeDir != "" {
		for _, candidate := range []string{
			filepath.Join(exeDir, "module", name),
			filepath.Join(exeDir, name),
		} {
			if isFile(candidate) {
				return candidate, nil
			}
		}
	}

	// exec.ErrDot is an error here too; relative PATH entries are not trusted.
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", ErrUnavailable
}

// executableDir returns the directory of the running binary, or "" when it
// cannot be determined.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
