package store

// DDL per dialect. Table and column names follow the upstream analytics
// warehouse (image_detections, telegram_messages); processed_images is the
// dedup ledger and is written in the same transaction as the detections so
// a zero-detection image is still marked done.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS processed_images (
	fingerprint     TEXT PRIMARY KEY,
	image_path      TEXT NOT NULL,
	byte_size       INTEGER NOT NULL,
	model_version   TEXT NOT NULL,
	detection_count INTEGER NOT NULL,
	processed_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS image_detections (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	image_hash            TEXT NOT NULL,
	image_path            TEXT NOT NULL,
	message_id            INTEGER,
	channel_name          TEXT,
	detected_object_class TEXT NOT NULL,
	confidence_score      REAL NOT NULL,
	bbox_x1               REAL NOT NULL,
	bbox_y1               REAL NOT NULL,
	bbox_x2               REAL NOT NULL,
	bbox_y2               REAL NOT NULL,
	detection_date        TIMESTAMP NOT NULL,
	model_version         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_image_detections_image_hash ON image_detections(image_hash);
CREATE INDEX IF NOT EXISTS idx_image_detections_message_id ON image_detections(message_id);
CREATE INDEX IF NOT EXISTS idx_image_detections_object_class ON image_detections(detected_object_class);

CREATE TABLE IF NOT EXISTS telegram_messages (
	id         INTEGER NOT NULL,
	channel    TEXT NOT NULL,
	date       TIMESTAMP,
	text       TEXT,
	views      INTEGER,
	forwards   INTEGER,
	replies    INTEGER,
	has_media  BOOLEAN,
	scraped_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_telegram_messages_id_channel ON telegram_messages(id, channel);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS processed_images (
	fingerprint     TEXT PRIMARY KEY,
	image_path      TEXT NOT NULL,
	byte_size       BIGINT NOT NULL,
	model_version   TEXT NOT NULL,
	detection_count INTEGER NOT NULL,
	processed_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS image_detections (
	id                    BIGSERIAL PRIMARY KEY,
	image_hash            TEXT NOT NULL,
	image_path            TEXT NOT NULL,
	message_id            BIGINT,
	channel_name          TEXT,
	detected_object_class TEXT NOT NULL,
	confidence_score      DOUBLE PRECISION NOT NULL,
	bbox_x1               DOUBLE PRECISION NOT NULL,
	bbox_y1               DOUBLE PRECISION NOT NULL,
	bbox_x2               DOUBLE PRECISION NOT NULL,
	bbox_y2               DOUBLE PRECISION NOT NULL,
	detection_date        TIMESTAMPTZ NOT NULL,
	model_version         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_image_detections_image_hash ON image_detections(image_hash);
CREATE INDEX IF NOT EXISTS idx_image_detections_message_id ON image_detections(message_id);
CREATE INDEX IF NOT EXISTS idx_image_detections_object_class ON image_detections(detected_object_class);

CREATE TABLE IF NOT EXISTS telegram_messages (
	id         BIGINT NOT NULL,
	channel    TEXT NOT NULL,
	date       TIMESTAMPTZ,
	text       TEXT,
	views      INTEGER,
	forwards   INTEGER,
	replies    INTEGER,
	has_media  BOOLEAN,
	scraped_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_telegram_messages_id_channel ON telegram_messages(id, channel);
`
