package engine

import (
	"slices"
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    []string
		notWant []string
	}{
		{
			name:    "defaults",
			cfg:     Config{LogPath: "/var/log/aria2.log"},
			want:    []string{"--log=/var/log/aria2.log", "--file-allocation=none", "--rpc-listen-all=false"},
			notWant: []string{"--disable-ipv6=true"},
		},
		{
			name: "ipv6 disabled with doh",
			cfg:  Config{DisableIPv6: true, UseDoH: true},
			want: []string{"--disable-ipv6=true", "--async-dns-server=" + dnsServersIPv4},
		},
		{
			name:    "doh with ipv6",
			cfg:     Config{UseDoH: true},
			want:    []string{"--async-dns-server=" + dnsServersMixed},
			notWant: []string{"--disable-ipv6=true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := buildArgs(tt.cfg, 23456, "sekrit", 4242)

			common := []string{
				"--enable-rpc",
				"--rpc-listen-port=23456",
				"--rpc-secret=sekrit",
				"--stop-with-process=4242",
				"--async-dns=true",
			}
			for _, w := range append(common, tt.want...) {
				if !slices.Contains(args, w) {
					t.Errorf("args missing %q: %v", w, args)
				}
			}
			for _, nw := range tt.notWant {
				if slices.Contains(args, nw) {
					t.Errorf("args should not contain %q", nw)
				}
			}
			if !tt.cfg.UseDoH {
				for _, a := range args {
					if strings.HasPrefix(a, "--async-dns-server=") {
						t.Errorf("unexpected %q without DoH", a)
					}
				}
			}
		})
	}
}

func TestConfig_DefaultLogPath(t *testing.T) {
	if got := (Config{}).logPath(); !strings.HasSuffix(got, "emuget-aria2.log") {
		t.Errorf("logPath() = %q", got)
	}
}
