package fallback

import (
	"runtime"
	"testing"
	"time"
)

func TestResolveFilename_Tiers(t *testing.T) {
	now := time.Unix(0, 1700000000123456789)

	tests := []struct {
		name string
		out  string
		cd   string
		url  string
		want string
	}{
		{
			name: "out option wins",
			out:  "explicit.zip",
			cd:   `attachment; filename*=UTF-8''star.zip; filename="plain.zip"`,
			url:  "https://example.com/files/url.zip",
			want: "explicit.zip",
		},
		{
			name: "filename star",
			cd:   `attachment; filename*=UTF-8''Firmware%2017.0.1.zip`,
			url:  "https://example.com/files/url.zip",
			want: "Firmware 17.0.1.zip",
		},
		{
			name: "filename star preferred over plain",
			cd:   `attachment; filename="plain.zip"; filename*=UTF-8''star%C3%A9.zip`,
			url:  "https://example.com/files/url.zip",
			want: "staré.zip",
		},
		{
			name: "quoted plain filename",
			cd:   `attachment; filename="plain name.zip"`,
			url:  "https://example.com/files/url.zip",
			want: "plain name.zip",
		},
		{
			name: "token plain filename",
			cd:   `attachment; filename=token.zip; size=10`,
			url:  "https://example.com/files/url.zip",
			want: "token.zip",
		},
		{
			name: "url basename decoded",
			url:  "https://example.com/files/Ryujinx%201.1.zip?token=abc",
			want: "Ryujinx 1.1.zip",
		},
		{
			name: "generated default",
			url:  "https://example.com/",
			want: "download_1700000000123456789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveFilename(tt.out, tt.cd, tt.url, now); got != tt.want {
				t.Errorf("resolveFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fw.zip", "fw.zip"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"..", ""},
		{".hidden", "hidden"},
		{"  spaced.bin  ", "spaced.bin"},
		{"a\x00b", "a_b"},
		{`dir\file`, "dir_file"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_WindowsReserved(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("reserved device names only apply on windows")
	}
	if got := sanitizeFilename("con.txt"); got != "_con.txt" {
		t.Errorf("sanitizeFilename(con.txt) = %q", got)
	}
}

func TestFilenameStar_Malformed(t *testing.T) {
	for _, header := range []string{
		"attachment; filename*=no-quotes.zip",
		"attachment; filename*=UTF-8''bad%zzescape",
		"inline",
	} {
		if got := filenameStar(header); got != "" {
			t.Errorf("filenameStar(%q) = %q, want empty", header, got)
		}
	}
}
