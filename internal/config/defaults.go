package config

const (
	defaultConfigFile = "imagepipe.toml"

	defaultConfidenceThreshold = 0.3
	defaultModelVersion        = "yolov8n"
	defaultWorkers             = 4
	defaultLogLevel            = "info"
	defaultDatabaseDriver      = "sqlite"
	defaultDatabaseDSN         = "./imagepipe.db"
	defaultDetectorURL         = "http://localhost:8090"
	defaultDetectTimeoutSec    = 120
	defaultMaxUploadDim        = 1280
)

// Default returns the built-in configuration, suitable for local development
// against a sqlite database and a detector stub.
func Default() *Config {
	return &Config{
		ConfidenceThreshold: defaultConfidenceThreshold,
		ModelVersion:        defaultModelVersion,
		Workers:             defaultWorkers,
		LogLevel:            defaultLogLevel,
		Database: Database{
			Driver: defaultDatabaseDriver,
			DSN:    defaultDatabaseDSN,
		},
		Detector: Detector{
			URL:            defaultDetectorURL,
			TimeoutSeconds: defaultDetectTimeoutSec,
			MaxUploadDim:   defaultMaxUploadDim,
		},
	}
}
