package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

// Exists reports whether the fingerprint is marked processed. This is the
// dedup gate checked before inference runs.
func (s *Store) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM processed_images WHERE fingerprint = ? LIMIT 1`),
		fingerprint,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: check fingerprint: %v", pipeline.ErrPersist, err)
	}
	return true, nil
}

// Save persists the ledger entry and all detection records for one image as
// a single atomic unit. It returns false when another writer already owns
// the fingerprint; the caller reports the image as skipped, not failed. On
// any error the transaction is rolled back and the fingerprint stays
// uncommitted, leaving the image eligible for retry on a future run.
func (s *Store) Save(ctx context.Context, entry pipeline.ProcessedImage, records []pipeline.DetectionRecord) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin transaction: %v", pipeline.ErrPersist, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO processed_images (fingerprint, image_path, byte_size, model_version, detection_count, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING`),
		entry.Fingerprint, entry.ImagePath, entry.ByteSize, entry.ModelVersion, entry.DetectionCount, entry.ProcessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("%w: insert ledger entry: %v", pipeline.ErrPersist, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: ledger rows affected: %v", pipeline.ErrPersist, err)
	}
	if inserted == 0 {
		// Lost the race to a concurrent writer; their records stand.
		return false, nil
	}

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO image_detections (
				image_hash, image_path, message_id, channel_name,
				detected_object_class, confidence_score,
				bbox_x1, bbox_y1, bbox_x2, bbox_y2,
				detection_date, model_version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			rec.Fingerprint, rec.ImagePath, nullInt64(rec.MessageID), nullString(rec.Channel),
			rec.Class, rec.Confidence,
			rec.Box.X1, rec.Box.Y1, rec.Box.X2, rec.Box.Y2,
			rec.DetectedAt, rec.ModelVersion,
		); err != nil {
			return false, fmt.Errorf("%w: insert detection: %v", pipeline.ErrPersist, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", pipeline.ErrPersist, err)
	}
	return true, nil
}

// Summarize aggregates everything persisted so far. topClasses bounds the
// top-classes ranking.
func (s *Store) Summarize(ctx context.Context, topClasses int) (*pipeline.StoreSummary, error) {
	summary := &pipeline.StoreSummary{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT detected_object_class),
			COUNT(DISTINCT message_id),
			COALESCE(AVG(confidence_score), 0),
			COALESCE(SUM(CASE WHEN confidence_score >= 0.8 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN confidence_score >= 0.5 AND confidence_score < 0.8 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN confidence_score < 0.5 THEN 1 ELSE 0 END), 0)
		FROM image_detections`,
	).Scan(
		&summary.TotalDetections,
		&summary.DistinctClasses,
		&summary.MessagesWithDetections,
		&summary.AvgConfidence,
		&summary.ConfidenceBuckets.High,
		&summary.ConfidenceBuckets.Medium,
		&summary.ConfidenceBuckets.Low,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize detections: %w", err)
	}

	summary.TopClasses, err = s.topClasses(ctx, topClasses)
	if err != nil {
		return nil, err
	}
	summary.ChannelCounts, err = s.channelCounts(ctx)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Store) topClasses(ctx context.Context, limit int) ([]pipeline.ClassCount, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT detected_object_class, COUNT(*) AS n
		FROM image_detections
		GROUP BY detected_object_class
		ORDER BY n DESC, detected_object_class
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("summarize top classes: %w", err)
	}
	defer rows.Close()

	var counts []pipeline.ClassCount
	for rows.Next() {
		var c pipeline.ClassCount
		if err := rows.Scan(&c.Class, &c.Count); err != nil {
			return nil, fmt.Errorf("scan top class: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *Store) channelCounts(ctx context.Context) ([]pipeline.ChannelCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_name, COUNT(*) AS n
		FROM image_detections
		WHERE channel_name IS NOT NULL
		GROUP BY channel_name
		ORDER BY n DESC, channel_name`)
	if err != nil {
		return nil, fmt.Errorf("summarize channels: %w", err)
	}
	defer rows.Close()

	var counts []pipeline.ChannelCount
	for rows.Next() {
		var c pipeline.ChannelCount
		if err := rows.Scan(&c.Channel, &c.Count); err != nil {
			return nil, fmt.Errorf("scan channel count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
