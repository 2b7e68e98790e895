package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZebulonRouseFrantzich/emuget/internal/config"
	"github.com/ZebulonRouseFrantzich/emuget/internal/dirlock"
	"github.com/ZebulonRouseFrantzich/emuget/internal/engine"
	"github.com/ZebulonRouseFrantzich/emuget/internal/mirror"
	"github.com/ZebulonRouseFrantzich/emuget/internal/notify"
	"github.com/ZebulonRouseFrantzich/emuget/internal/platform"
	"github.com/ZebulonRouseFrantzich/emuget/internal/transfer"
	"github.com/ZebulonRouseFrantzich/emuget/internal/verify"
)

// getOptions are the parsed flags of `emuget get`.
type getOptions struct {
	URLs         []string
	Dir          string
	Out          string
	Name         string
	SHA256       string
	ChecksumURL  string
	SignatureURL string
	Quiet        bool
}

// parseGetFlags parses `emuget get` arguments. Output goes to w so tests
// can silence usage text.
func parseGetFlags(args []string, w io.Writer) (*getOptions, error) {
	opts := &getOptions{}

	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.StringVar(&opts.Dir, "dir", "", "destination directory (default: download.dir setting)")
	fs.StringVar(&opts.Out, "out", "", "output file name (single URL only)")
	fs.StringVar(&opts.Name, "name", "", "name shown in progress messages")
	fs.StringVar(&opts.SHA256, "sha256", "", "expected SHA-256 of the downloaded file")
	fs.StringVar(&opts.ChecksumURL, "checksum-url", "", "URL of a SHA256SUMS file listing the download")
	fs.StringVar(&opts.SignatureURL, "sig-url", "", "URL of a detached OpenPGP signature")
	fs.BoolVar(&opts.Quiet, "quiet", false, "send progress to the log instead of stdout")
	fs.Usage = func() {
		fmt.Fprintln(w, "Usage: emuget get [options] <url>...")
		fmt.Fprintln(w)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.URLs = fs.Args()
	if len(opts.URLs) == 0 {
		return nil, errors.New("usage: emuget get [options] <url>...")
	}
	if len(opts.URLs) > 1 && (opts.Out != "" || opts.SHA256 != "") {
		return nil, errors.New("-out and -sha256 apply to a single URL")
	}

	return opts, nil
}

// requests turns the flags into transfer requests against defaultDir.
func (o *getOptions) requests(defaultDir, maxLimit string) []transfer.Request {
	dir := o.Dir
	if dir == "" {
		dir = defaultDir
	}

	reqs := make([]transfer.Request, 0, len(o.URLs))
	for _, u := range o.URLs {
		options := make(map[string]string)
		if o.Out != "" {
			options["out"] = o.Out
		}
		if maxLimit != "" {
			options["max-download-limit"] = maxLimit
		}
		reqs = append(reqs, transfer.Request{
			URL:     u,
			Dir:     dir,
			Options: options,
			Name:    o.Name,
			Verify: transfer.Verification{
				SHA256:       o.SHA256,
				ChecksumURL:  o.ChecksumURL,
				SignatureURL: o.SignatureURL,
			},
		})
	}
	return reqs
}

// runGet handles the `emuget get` subcommand.
func runGet(args []string) error {
	opts, err := parseGetFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	emugetDir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("get emuget directory: %w", err)
	}
	logger.Debug("using emuget directory", "dir", emugetDir)

	detector := platform.NewDetector()
	settings, err := config.NewParser(detector).WithLogger(logger).Load(ctx, emugetDir)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	reqs := opts.requests(settings.Download.Dir, settings.Download.MaxDownloadLimit)

	lock, err := dirlock.Acquire(ctx, reqs[0].Dir)
	if err != nil {
		return fmt.Errorf("lock %s: %w", reqs[0].Dir, err)
	}
	defer lock.Release()

	ctrl, supervisor, err := newController(settings, detector, opts.Quiet, logger)
	if err != nil {
		return err
	}
	defer supervisor.Shutdown()

	for _, req := range reqs {
		res, err := ctrl.Download(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return stopTransfers(ctrl, logger)
			}
			return fmt.Errorf("download %s: %w", req.URL, err)
		}
		for _, f := range res.Files {
			fmt.Println(f)
		}
	}

	return nil
}

// newController wires settings into the shared engine supervisor and a
// transfer controller.
func newController(settings *config.Settings, detector platform.Detector, quiet bool, logger *slog.Logger) (*transfer.Controller, *engine.Supervisor, error) {
	table := mirror.DefaultTable()
	if settings.Network.MirrorFile != "" {
		loaded, err := mirror.LoadTable(settings.Network.MirrorFile)
		if err != nil {
			return nil, nil, err
		}
		table = loaded
	}

	resolver := mirror.NewResolver(table, mirror.Options{
		Proxy:     settings.Network.Proxy,
		UseMirror: settings.Network.UseMirror,
		UserAgent: settings.Network.UserAgent,
		Logger:    logger,
	})

	supervisor := engine.Default()
	supervisor.Configure(engine.Config{
		EnginePath:    settings.Download.EnginePath,
		RemoveOldLog:  settings.Download.RemoveOldEngineLog,
		DisableIPv6:   settings.Download.DisableIPv6,
		UseDoH:        settings.Network.UseDoH,
		GlobalOptions: resolver.GlobalOptions(),
		Detector:      detector,
		Logger:        logger,
	})

	var sink notify.Sink = notify.Func(func(msg string) { fmt.Println(msg) })
	if quiet {
		sink = notify.LogSink{Logger: logger}
	}

	ctrl := transfer.New(supervisor,
		transfer.WithResolver(resolver),
		transfer.WithSink(sink),
		transfer.WithVerifier(verify.NewVerifier(settings.Verify.Keyring)),
		transfer.WithLogger(logger),
		transfer.WithAutoDelete(settings.Download.AutoDeleteAfterInstall),
	)
	return ctrl, supervisor, nil
}

// stopTransfers removes engine transfers after an interrupt.
func stopTransfers(ctrl *transfer.Controller, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopped, err := ctrl.StopAll(ctx)
	if err != nil {
		logger.Warn("failed to stop engine transfers", "error", err)
	}
	if stopped {
		logger.Info("stopped engine transfers")
	}
	return errors.New("interrupted")
}
