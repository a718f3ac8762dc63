// Package correlate infers which channel and message an image file came
// from. A scraper-produced manifest is the preferred source; the filename
// digit heuristic is the degrading fallback. Correlation never fails hard:
// the worst case result is an empty association, which is a valid, storable
// state.
package correlate

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

// MessageFinder verifies that a (channel, messageID) pair exists in the
// message store. Read-only.
type MessageFinder interface {
	FindMessage(ctx context.Context, channel string, messageID int64) (bool, error)
}

var digitRun = regexp.MustCompile(`\d+`)

// Correlator resolves image paths to message associations.
type Correlator struct {
	root       string
	channelSet map[string]struct{}
	manifest   Manifest
	finder     MessageFinder
	logger     *slog.Logger
}

// New creates a correlator for one corpus root. channels is the configured
// allow-list; manifest may be nil.
func New(root string, channels []string, manifest Manifest, finder MessageFinder, logger *slog.Logger) *Correlator {
	set := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	return &Correlator{
		root:       root,
		channelSet: set,
		manifest:   manifest,
		finder:     finder,
		logger:     logger,
	}
}

// Resolve returns the association for one image path. A message ID is only
// set after a positive lookup in the message store; a verification error
// degrades to channel-only and is logged, never surfaced as a failure.
func (c *Correlator) Resolve(ctx context.Context, path string) pipeline.Association {
	if entry, ok := c.manifestEntry(path); ok {
		return c.verify(ctx, path, entry.Channel, entry.MessageID)
	}

	channel := c.matchChannel(path)
	if channel == "" {
		return pipeline.Association{}
	}

	candidate, ok := messageCandidate(path)
	if !ok {
		return pipeline.Association{Channel: channel}
	}
	return c.verify(ctx, path, channel, candidate)
}

// manifestEntry looks the path up in the manifest by its corpus-relative,
// slash-separated form.
func (c *Correlator) manifestEntry(path string) (ManifestEntry, bool) {
	if len(c.manifest) == 0 {
		return ManifestEntry{}, false
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return ManifestEntry{}, false
	}
	entry, ok := c.manifest[filepath.ToSlash(rel)]
	return entry, ok
}

// matchChannel scans path components against the known-channel set; the
// first match wins.
func (c *Correlator) matchChannel(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if _, ok := c.channelSet[part]; ok {
			return part
		}
	}
	return ""
}

// messageCandidate extracts the first run of digits from the file's base
// name, without extension. Later runs are never tried; a date-stamped
// filename can defeat this, which is why the manifest takes precedence.
func messageCandidate(path string) (int64, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	match := digitRun.FindString(base)
	if match == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (c *Correlator) verify(ctx context.Context, path, channel string, messageID int64) pipeline.Association {
	assoc := pipeline.Association{Channel: channel}
	found, err := c.finder.FindMessage(ctx, channel, messageID)
	if err != nil {
		c.logger.Warn("message verification failed, keeping channel only",
			slog.String("path", path),
			slog.String("channel", channel),
			slog.Int64("candidate", messageID),
			slog.String("error", err.Error()))
		return assoc
	}
	if found {
		assoc.MessageID = &messageID
	}
	return assoc
}
