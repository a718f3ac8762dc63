package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Message is one scraped channel message, as exported by the upstream
// scraper's JSON files.
type Message struct {
	ID       int64    `json:"id"`
	Channel  string   `json:"channel"`
	Date     jsonTime `json:"date"`
	Text     string   `json:"text"`
	Views    int      `json:"views"`
	Forwards int      `json:"forwards"`
	Replies  int      `json:"replies"`
	HasMedia bool     `json:"has_media"`
	Scraped  jsonTime `json:"scraped_at"`
}

// messageExport is the envelope of one scraper export file.
type messageExport struct {
	Messages []Message `json:"messages"`
}

// FindMessage reports whether a message with the given identifier exists
// under the given channel. Implements correlate.MessageFinder.
func (s *Store) FindMessage(ctx context.Context, channel string, messageID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM telegram_messages WHERE id = ? AND channel = ? LIMIT 1`),
		messageID, channel,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find message: %w", err)
	}
	return true, nil
}

// InsertMessages loads scraped messages into the message store in one
// transaction.
func (s *Store) InsertMessages(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO telegram_messages (id, channel, date, text, views, forwards, replies, has_media, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.Channel, m.Date.Time, m.Text, m.Views, m.Forwards, m.Replies, m.HasMedia, m.Scraped.Time,
		); err != nil {
			return fmt.Errorf("insert message %d/%s: %w", m.ID, m.Channel, err)
		}
	}
	return tx.Commit()
}

// LoadMessageFiles parses every .json export in dir (one file per
// channel/day) and returns all contained messages.
func LoadMessageFiles(dir string) ([]Message, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list message files: %w", err)
	}
	sort.Strings(entries)

	var all []Message
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var export messageExport
		if err := json.Unmarshal(data, &export); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		all = append(all, export.Messages...)
	}
	return all, nil
}

// jsonTime accepts both RFC 3339 and the zone-less ISO form the scraper
// emits.
type jsonTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *jsonTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", raw)
}

func (t jsonTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339))
}
