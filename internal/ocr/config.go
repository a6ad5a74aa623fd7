package ocr

import (
	"fmt"
	"regexp"
)

// Default recognition settings.
const (
	DefaultLanguage    = "eng"
	DefaultPageSegMode = 3 // fully automatic page segmentation
	DefaultEngineMode  = 1 // LSTM only
	DefaultWorkers     = 4
)

// Config selects how the OCR engine reads a page. It is a value type and is
// never modified once a Recognizer holds it.
type Config struct {
	Language    string `json:"language"`
	PageSegMode int    `json:"psm"`
	EngineMode  int    `json:"oem"`
}

// languagePattern matches tesseract language specs such as "eng" or
// "eng+chi_sim".
var languagePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\+[A-Za-z0-9_]+)*$`)

// DefaultConfig returns eng / psm 3 / oem 1.
func DefaultConfig() Config {
	return Config{
		Language:    DefaultLanguage,
		PageSegMode: DefaultPageSegMode,
		EngineMode:  DefaultEngineMode,
	}
}

// EngineArgs renders the segmentation and engine modes as tesseract flags.
func (c Config) EngineArgs() string {
	return fmt.Sprintf("--psm %d --oem %d", c.PageSegMode, c.EngineMode)
}

// String is used in cache keys and log lines.
func (c Config) String() string {
	return fmt.Sprintf("lang=%s psm=%d oem=%d", c.Language, c.PageSegMode, c.EngineMode)
}

// Validate rejects settings tesseract does not accept.
func (c Config) Validate() error {
	if !languagePattern.MatchString(c.Language) {
		return fmt.Errorf("%w: language %q", ErrInvalidOptions, c.Language)
	}
	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return fmt.Errorf("%w: psm %d not in 0-13", ErrInvalidOptions, c.PageSegMode)
	}
	if c.EngineMode < 0 || c.EngineMode > 3 {
		return fmt.Errorf("%w: oem %d not in 0-3", ErrInvalidOptions, c.EngineMode)
	}
	return nil
}
