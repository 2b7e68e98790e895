// Package verify checks the integrity of downloaded artifacts with SHA-256
// digests, SHA256SUMS-style checksum files and OpenPGP detached signatures.
package verify

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

var (
	// ErrChecksumMismatch is returned when a file does not hash to the expected digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrSignature is returned when a detached signature does not verify.
	ErrSignature = errors.New("signature verification failed")
	// ErrNoKeyring is returned when signature checks are requested without a keyring.
	ErrNoKeyring = errors.New("no keyring configured")
)

// MismatchError carries both digests of a failed checksum comparison.
type MismatchError struct {
	Path     string
	Actual   string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s:\nactual:   %s\nexpected: %s",
		filepath.Base(e.Path), e.Actual, e.Expected)
}

func (e *MismatchError) Unwrap() error {
	return ErrChecksumMismatch
}

// Verifier verifies files. The keyring is only needed for signatures.
type Verifier struct {
	keyringPath string
}

// NewVerifier creates a verifier using the OpenPGP keyring at keyringPath,
// which may be empty when only checksums are used.
func NewVerifier(keyringPath string) *Verifier {
	return &Verifier{keyringPath: keyringPath}
}

// SHA256 checks that path hashes to expected (hex, case-insensitive).
func (v *Verifier) SHA256(path, expected string) error {
	actual, err := FileSHA256(path)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}

	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return &MismatchError{Path: path, Actual: actual, Expected: expected}
	}

	return nil
}

// ChecksumFile checks path against its entry in a SHA256SUMS-style file.
func (v *Verifier) ChecksumFile(path, checksumPath string) error {
	expected, err := FindChecksum(checksumPath, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("find checksum: %w", err)
	}
	return v.SHA256(path, expected)
}

// Signature checks an armored or binary detached signature of path.
func (v *Verifier) Signature(path, signaturePath string) error {
	keyring, err := v.loadKeyring()
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	// Try armored first
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, file, sigFile, nil)
	if err != nil {
		if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind file: %w", seekErr)
		}
		if _, seekErr := sigFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, file, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}

	return nil
}

// loadKeyring reads the armored or binary keyring.
func (v *Verifier) loadKeyring() (openpgp.EntityList, error) {
	if v.keyringPath == "" {
		return nil, ErrNoKeyring
	}

	keyringFile, err := os.Open(v.keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		if _, seekErr := keyringFile.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// FileSHA256 returns the hex SHA-256 digest of a file.
func FileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// FindChecksum finds the digest for filename in a checksum file.
// Format: "abc123def456  filename.tar.gz", optionally "*filename" for binary mode.
func FindChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || filepath.Base(name) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}
