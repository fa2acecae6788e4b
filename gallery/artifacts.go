// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MaxDownload caps every fetched image.
const MaxDownload = 20 << 20

var (
	ErrTooLarge   = errors.New("download exceeds size limit")
	ErrNotCached  = errors.New("no cached artifact")
	ErrBadFetch   = errors.New("download failed")
	safeID        = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	knownImageExt = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
)

// Artifacts caches submitted images on local disk between submission and
// reveal, one directory per round and one file per member.
type Artifacts struct {
	dir    string
	client *http.Client
}

func NewArtifacts(dir string) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &Artifacts{
		dir:    dir,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Fetch downloads rawURL, refusing bodies over MaxDownload.
func (a *Artifacts) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFetch, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadFetch, rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFetch, err)
	}
	if len(data) > MaxDownload {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Save downloads a member's submission for a round into the cache and
// returns the local path. Any earlier file for the member in that round is
// replaced.
func (a *Artifacts) Save(ctx context.Context, roundID, memberID, rawURL string) (string, error) {
	data, err := a.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(a.dir, fileStem(roundID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create round dir: %w", err)
	}
	a.remove(dir, memberID)
	dst := filepath.Join(dir, fileStem(memberID)+extensionOf(rawURL))

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}
	return dst, nil
}

// Load returns the cached image a member submitted in a round.
func (a *Artifacts) Load(roundID, memberID string) ([]byte, error) {
	stem := filepath.Join(a.dir, fileStem(roundID), fileStem(memberID))
	for _, ext := range knownImageExt {
		data, err := os.ReadFile(stem + ext)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, ErrNotCached
}

// Clear removes everything cached for a round.
func (a *Artifacts) Clear(roundID string) error {
	return os.RemoveAll(filepath.Join(a.dir, fileStem(roundID)))
}

func (a *Artifacts) remove(dir, memberID string) {
	stem := fileStem(memberID)
	for _, ext := range knownImageExt {
		os.Remove(filepath.Join(dir, stem+ext))
	}
}

// fileStem maps a round or member ID to a safe file name.
func fileStem(id string) string {
	if safeID.MatchString(id) {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return "m-" + hex.EncodeToString(sum[:12])
}

func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".png"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, known := range knownImageExt {
		if ext == known {
			return ext
		}
	}
	return ".png"
}
