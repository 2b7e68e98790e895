// Package mirror maps canonical artifact URLs to the URL and transport
// options actually used for a transfer.
package mirror

import (
	"context"
	"log/slog"
)

// DefaultUserAgent is sent when no user agent is configured. Some artifact
// hosts reject non-browser agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"

// Resolver rewrites a canonical URL and supplies per-transfer options.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, map[string]string, error)
}

// Options configure a TableResolver.
type Options struct {
	// Proxy is passed to the engine as all-proxy and disables mirrors.
	Proxy string
	// UseMirror enables table rewrites.
	UseMirror bool
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	Logger    *slog.Logger
}

// TableResolver resolves URLs through a Table.
type TableResolver struct {
	table *Table
	opts  Options
}

// NewResolver creates a resolver. A nil table means DefaultTable.
func NewResolver(table *Table, opts Options) *TableResolver {
	if table == nil {
		table = DefaultTable()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &TableResolver{table: table, opts: opts}
}

// Resolve returns the URL to fetch and a fresh option map holding
// all-proxy (when configured) and user-agent. Mirrors are skipped when a
// proxy is configured.
func (r *TableResolver) Resolve(_ context.Context, rawURL string) (string, map[string]string, error) {
	options := map[string]string{
		"user-agent": r.userAgent(),
	}

	if r.opts.Proxy != "" {
		options["all-proxy"] = r.opts.Proxy
		r.opts.Logger.Debug("using origin url", "url", rawURL, "reason", "proxy")
		return rawURL, options, nil
	}

	if !r.opts.UseMirror {
		return rawURL, options, nil
	}

	if rewritten, ok := r.table.Rewrite(rawURL); ok {
		r.opts.Logger.Info("using mirror url", "url", rewritten)
		return rewritten, options, nil
	}

	return rawURL, options, nil
}

// GlobalOptions returns the engine-wide options pushed after launch.
func (r *TableResolver) GlobalOptions() map[string]string {
	return GlobalOptions(r.opts.Proxy != "")
}

func (r *TableResolver) userAgent() string {
	if r.opts.UserAgent != "" {
		return r.opts.UserAgent
	}
	return DefaultUserAgent
}

// GlobalOptions returns split and connection settings. Proxied transfers
// use smaller pieces.
func GlobalOptions(usingProxy bool) map[string]string {
	minSplit := "4M"
	if usingProxy {
		minSplit = "1M"
	}
	return map[string]string{
		"split":                     "16",
		"max-connection-per-server": "16",
		"min-split-size":            minSplit,
	}
}
