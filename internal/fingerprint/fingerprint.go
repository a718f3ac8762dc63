// Package fingerprint computes content-derived identities for corpus files.
// The fingerprint, not the file path, is the dedup key: renamed or moved
// copies of the same bytes hash to the same value.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

// Handle describes one corpus file for the duration of a single run.
type Handle struct {
	Path   string
	Size   int64
	Digest string // hex-encoded SHA-256 of the file bytes
}

// Compute streams the file through SHA-256 and returns its handle. Failures
// wrap pipeline.ErrRead so the caller can classify them; an unreadable file
// must never be treated as new.
func Compute(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", pipeline.ErrRead, path, err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", pipeline.ErrRead, path, err)
	}

	return &Handle{
		Path:   path,
		Size:   size,
		Digest: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
