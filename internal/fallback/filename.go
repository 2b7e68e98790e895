package fallback

import (
	"net/url"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// resolveFilename picks the output name: the out option, then the
// Content-Disposition header (filename* before filename), then the URL
// basename, then a timestamped default. The result is sanitized.
func resolveFilename(out, contentDisposition, rawURL string, now time.Time) string {
	candidates := []string{
		out,
		filenameStar(contentDisposition),
		filenamePlain(contentDisposition),
		urlBasename(rawURL),
	}
	for _, c := range candidates {
		if name := sanitizeFilename(c); name != "" {
			return name
		}
	}
	return "download_" + strconv.FormatInt(now.UnixNano(), 10)
}

// filenameStar extracts an RFC 5987 filename*=charset'lang'value parameter.
func filenameStar(header string) string {
	idx := strings.Index(strings.ToLower(header), "filename*=")
	if idx < 0 {
		return ""
	}

	value := header[idx+len("filename*="):]
	if end := strings.IndexByte(value, ';'); end >= 0 {
		value = value[:end]
	}
	value = strings.Trim(strings.TrimSpace(value), `"`)

	_, encoded, ok := strings.Cut(value, "''")
	if !ok {
		return ""
	}

	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return ""
	}
	return decoded
}

// filenamePlain extracts a quoted or token filename= parameter, skipping
// any filename*= occurrence.
func filenamePlain(header string) string {
	lower := strings.ToLower(header)
	from := 0
	for {
		pos := strings.Index(lower[from:], "filename=")
		if pos < 0 {
			return ""
		}
		abs := from + pos
		if abs > 0 && header[abs-1] == '*' {
			from = abs + 1
			continue
		}

		value := header[abs+len("filename="):]
		if strings.HasPrefix(value, `"`) {
			end := strings.IndexByte(value[1:], '"')
			if end < 0 {
				return ""
			}
			return value[1 : end+1]
		}
		if end := strings.IndexAny(value, "; \t"); end >= 0 {
			value = value[:end]
		}
		return value
	}
}

// urlBasename returns the %-decoded last path segment of rawURL.
func urlBasename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	escaped := u.EscapedPath()
	if escaped == "" || strings.HasSuffix(escaped, "/") {
		return ""
	}

	name, err := url.PathUnescape(path.Base(escaped))
	if err != nil {
		return ""
	}
	return name
}

var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// sanitizeFilename makes name safe to join onto a directory. Path
// separators and NUL become "_", and leading dots and surrounding space are
// stripped, so the result never escapes the directory.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")
	if runtime.GOOS == "windows" {
		replacer = strings.NewReplacer(
			"/", "_", "\\", "_", "\x00", "_",
			"<", "_", ">", "_", ":", "_", `"`, "_", "|", "_", "?", "_", "*", "_",
		)
	}

	name = strings.TrimSpace(replacer.Replace(name))
	name = strings.TrimLeft(name, ".")

	if runtime.GOOS == "windows" {
		stem, _, _ := strings.Cut(strings.ToUpper(name), ".")
		if windowsReserved[stem] {
			name = "_" + name
		}
	}

	return name
}
