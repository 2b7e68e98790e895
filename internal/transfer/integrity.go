package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ZebulonRouseFrantzich/emuget/internal/verify"
)

// checkIntegrity runs the request's verification against the single output
// file. Existing files are checked like fresh ones. A file that fails is
// removed so a retry transfers it again instead of reusing it.
func (c *Controller) checkIntegrity(ctx context.Context, req Request, result *Result) error {
	if req.Verify.empty() {
		return nil
	}
	if len(result.Files) != 1 {
		return fmt.Errorf("verify: expected one output file, got %d", len(result.Files))
	}
	file := result.Files[0]

	err := c.runChecks(ctx, req, file)
	if err == nil {
		c.logger.Debug("artifact verified", "path", file)
		return nil
	}

	if errors.Is(err, verify.ErrChecksumMismatch) || errors.Is(err, verify.ErrSignature) {
		if rmErr := os.Remove(file); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("failed to remove unverified file", "path", file, "error", rmErr)
		}
	}
	return fmt.Errorf("verify %s: %w", file, err)
}

func (c *Controller) runChecks(ctx context.Context, req Request, file string) error {
	v := req.Verify

	if v.SHA256 != "" {
		if err := c.verifier.SHA256(file, v.SHA256); err != nil {
			return err
		}
	}

	if v.ChecksumURL == "" && v.SignatureURL == "" {
		return nil
	}

	tmpDir, err := os.MkdirTemp("", "emuget-verify-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if v.ChecksumURL != "" {
		sums, err := c.fetchAux(ctx, v.ChecksumURL, tmpDir)
		if err != nil {
			return fmt.Errorf("download checksums: %w", err)
		}
		if err := c.verifier.ChecksumFile(file, sums); err != nil {
			return err
		}
	}

	if v.SignatureURL != "" {
		sig, err := c.fetchAux(ctx, v.SignatureURL, tmpDir)
		if err != nil {
			return fmt.Errorf("download signature: %w", err)
		}
		if err := c.verifier.Signature(file, sig); err != nil {
			return err
		}
	}

	return nil
}

// fetchAux downloads a small verification file with the direct transport,
// using the same resolver options as the artifact.
func (c *Controller) fetchAux(ctx context.Context, rawURL, dir string) (string, error) {
	target, options, err := c.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if options == nil {
		options = make(map[string]string)
	}
	options["allow-overwrite"] = "true"

	res, err := c.fallback.Fetch(ctx, target, dir, options, nil)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}
