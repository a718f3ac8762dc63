package correlate

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestEntry maps one saved image file to its source message.
type ManifestEntry struct {
	Channel   string `json:"channel"`
	MessageID int64  `json:"message_id"`
}

// Manifest is the scraper-produced mapping from corpus-relative image paths
// (slash-separated) to their source messages. It is the deterministic
// alternative to the filename heuristic.
type Manifest map[string]ManifestEntry

// LoadManifest reads a manifest JSON file. An empty path yields a nil
// manifest, which disables manifest lookups.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}
