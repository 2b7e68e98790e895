package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTableResolver_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		url     string
		wantURL string
		wantOpt map[string]string
	}{
		{
			name:    "github rewritten",
			opts:    Options{UseMirror: true},
			url:     "https://github.com/owner/repo/releases/download/v1/a.zip",
			wantURL: "https://ghproxy.com/https://github.com/owner/repo/releases/download/v1/a.zip",
			wantOpt: map[string]string{"user-agent": DefaultUserAgent},
		},
		{
			name:    "firmware rewritten",
			opts:    Options{UseMirror: true},
			url:     "https://archive.org/download/nintendo-switch-global-firmwares/Firmware%2017.0.0.zip",
			wantURL: "https://nsarchive.e6ex.com/nsfrp/Firmware%2017.0.0.zip",
			wantOpt: map[string]string{"user-agent": DefaultUserAgent},
		},
		{
			name:    "proxy skips mirror",
			opts:    Options{UseMirror: true, Proxy: "http://127.0.0.1:7890"},
			url:     "https://github.com/a",
			wantURL: "https://github.com/a",
			wantOpt: map[string]string{"user-agent": DefaultUserAgent, "all-proxy": "http://127.0.0.1:7890"},
		},
		{
			name:    "mirror disabled",
			opts:    Options{UserAgent: "emuget/1.0"},
			url:     "https://github.com/a",
			wantURL: "https://github.com/a",
			wantOpt: map[string]string{"user-agent": "emuget/1.0"},
		},
		{
			name:    "no matching rule",
			opts:    Options{UseMirror: true},
			url:     "https://example.com/a.bin",
			wantURL: "https://example.com/a.bin",
			wantOpt: map[string]string{"user-agent": DefaultUserAgent},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(nil, tt.opts)
			gotURL, gotOpt, err := r.Resolve(context.Background(), tt.url)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if gotURL != tt.wantURL {
				t.Errorf("url = %q, want %q", gotURL, tt.wantURL)
			}
			if len(gotOpt) != len(tt.wantOpt) {
				t.Fatalf("options = %v, want %v", gotOpt, tt.wantOpt)
			}
			for k, v := range tt.wantOpt {
				if gotOpt[k] != v {
					t.Errorf("options[%q] = %q, want %q", k, gotOpt[k], v)
				}
			}
		})
	}
}

func TestResolve_FreshMap(t *testing.T) {
	r := NewResolver(nil, Options{})
	_, a, _ := r.Resolve(context.Background(), "https://example.com/a")
	a["user-agent"] = "mutated"
	_, b, _ := r.Resolve(context.Background(), "https://example.com/a")
	if b["user-agent"] != DefaultUserAgent {
		t.Error("Resolve() must return a fresh option map per call")
	}
}

func TestGlobalOptions(t *testing.T) {
	if got := GlobalOptions(true)["min-split-size"]; got != "1M" {
		t.Errorf("proxied min-split-size = %q, want 1M", got)
	}
	direct := GlobalOptions(false)
	if direct["min-split-size"] != "4M" || direct["split"] != "16" || direct["max-connection-per-server"] != "16" {
		t.Errorf("GlobalOptions(false) = %v", direct)
	}
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "mirrors.yaml")
	content := "rules:\n  - prefix: https://example.com/\n    replace: https://cdn.example.net/\n"
	if err := os.WriteFile(valid, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadTable(valid)
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	got, ok := table.Rewrite("https://example.com/fw.zip")
	if !ok || got != "https://cdn.example.net/fw.zip" {
		t.Errorf("Rewrite() = %q, %v", got, ok)
	}

	incomplete := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(incomplete, []byte("rules:\n  - prefix: https://x/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(incomplete); err == nil {
		t.Error("LoadTable() should reject a rule without replace")
	}

	if _, err := LoadTable(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadTable() should fail for a missing file")
	}
}
