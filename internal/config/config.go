package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/pdfocr/internal/ocr"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Recognition defaults, overridable per request
	Language    string
	PageSegMode int
	EngineMode  int

	// OCR backend
	Engine        string
	TesseractPath string
	PdftoppmPath  string
	RasterDPI     int

	// Per-document page pool
	PageWorkers int
	PageTimeout time.Duration
	MaxPages    int

	// Job pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// HTTP
	MaxConnections int
	CORSOrigins    []string

	// Job state
	JobTTL    time.Duration
	CacheSize int

	// Archive (optional S3 upload of finished results)
	ArchiveBucket   string
	ArchivePrefix   string
	ArchiveRegion   string
	ArchiveEndpoint string
	AWSAccessKey    string
	AWSSecretKey    string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PDFOCR_API_KEY"),

		Language:    envOr("OCR_LANGUAGE", ocr.DefaultLanguage),
		PageSegMode: envInt("OCR_PSM", ocr.DefaultPageSegMode),
		EngineMode:  envInt("OCR_OEM", ocr.DefaultEngineMode),

		Engine:        envOr("OCR_ENGINE", "cli"),
		TesseractPath: envOr("TESSERACT_PATH", "tesseract"),
		PdftoppmPath:  envOr("PDFTOPPM_PATH", "pdftoppm"),
		RasterDPI:     envInt("RASTER_DPI", 200),

		PageWorkers: envInt("PAGE_WORKERS", ocr.DefaultWorkers),
		PageTimeout: envDuration("PAGE_TIMEOUT", 0),
		MaxPages:    envInt("MAX_PAGES", 0),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		MaxConnections: envInt("MAX_CONNECTIONS", 256),
		CORSOrigins:    envList("CORS_ORIGINS", []string{"*"}),

		JobTTL:    envDuration("JOB_TTL", 1*time.Hour),
		CacheSize: envInt("CACHE_SIZE", 128),

		ArchiveBucket:   os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix:   envOr("ARCHIVE_PREFIX", "pdfocr"),
		ArchiveRegion:   envOr("ARCHIVE_REGION", "us-east-1"),
		ArchiveEndpoint: os.Getenv("ARCHIVE_ENDPOINT"),
		AWSAccessKey:    os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey:    os.Getenv("AWS_SECRET_KEY"),
	}

	if cfg.Language == "" {
		cfg.Language = ocr.DefaultLanguage
	}
	if cfg.RasterDPI <= 0 {
		cfg.RasterDPI = 200
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = ocr.DefaultWorkers
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// OCR returns the default recognition settings.
func (c Config) OCR() ocr.Config {
	return ocr.Config{
		Language:    c.Language,
		PageSegMode: c.PageSegMode,
		EngineMode:  c.EngineMode,
	}
}

// Validate checks settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PDFOCR_API_KEY is required")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("MAX_PAGES must not be negative")
	}
	if (c.AWSAccessKey == "") != (c.AWSSecretKey == "") {
		return fmt.Errorf("AWS_ACCESS_KEY and AWS_SECRET_KEY must be set together")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
