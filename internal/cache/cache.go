// Package cache keeps finished OCR results in memory, keyed by document
// content and recognition settings, so re-uploads skip the OCR work.
package cache

import (
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dgallion1/pdfocr/internal/ocr"
)

// Results is a bounded LRU of *ocr.Result values. A nil *Results is a valid
// cache that never hits.
type Results struct {
	lru *lru.ARCCache
}

// New creates a cache holding up to size results. size <= 0 disables caching
// and returns nil.
func New(size int) (*Results, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.NewARC(size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &Results{lru: c}, nil
}

// Key identifies a result by document hash, recognition settings and page
// limit. Worker count does not change output and is not part of the key.
func Key(contentHash string, cfg ocr.Config, maxPages int) string {
	return fmt.Sprintf("%s|%s|max=%d", contentHash, cfg, maxPages)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

func (c *Results) Get(key string) (*ocr.Result, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	res, ok := v.(*ocr.Result)
	return res, ok
}

// Add stores res. Results with failed pages are not cached.
func (c *Results) Add(key string, res *ocr.Result) {
	if c == nil || res == nil || len(res.Failed) > 0 {
		return
	}
	c.lru.Add(key, res)
}

func (c *Results) Remove(key string) {
	if c == nil {
		return
	}
	c.lru.Remove(key)
}

func (c *Results) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
