package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdfocr/internal/ocr"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OCR_LANGUAGE", "")
	t.Setenv("PAGE_WORKERS", "")
	t.Setenv("JOB_TTL", "")

	cfg := Load()
	assert.Equal(t, ocr.DefaultConfig(), cfg.OCR())
	assert.Equal(t, ocr.DefaultWorkers, cfg.PageWorkers)
	assert.Equal(t, time.Hour, cfg.JobTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OCR_LANGUAGE", "deu+eng")
	t.Setenv("OCR_PSM", "6")
	t.Setenv("OCR_OEM", "3")
	t.Setenv("PAGE_WORKERS", "8")
	t.Setenv("PAGE_TIMEOUT", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("WORKER_COUNT", "-3")

	cfg := Load()
	assert.Equal(t, ocr.Config{Language: "deu+eng", PageSegMode: 6, EngineMode: 3}, cfg.OCR())
	assert.Equal(t, 8, cfg.PageWorkers)
	assert.Equal(t, 30*time.Second, cfg.PageTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2, cfg.WorkerCount, "non-positive worker count falls back")
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("OCR_PSM", "auto")
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	cfg := Load()
	assert.Equal(t, ocr.DefaultPageSegMode, cfg.PageSegMode)
	assert.Equal(t, int64(52428800), cfg.MaxUploadBytes)
}

func TestValidate(t *testing.T) {
	cfg := Config{APIKey: "k"}
	require.NoError(t, cfg.Validate())

	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{APIKey: "k", MaxPages: -1}.Validate())
	assert.Error(t, Config{APIKey: "k", AWSAccessKey: "id"}.Validate())
}
