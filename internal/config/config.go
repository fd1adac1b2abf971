// Package config loads the default section shape an ArchiveManager uses
// when creating a brand-new archive, trimmed from the teacher's JSON
// config loader (internal/config/config.go Default/Load/Validate) down to
// the handful of knobs a tag archive actually needs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the default section sizes used when CreateAt creates a
// fresh archive.
type Config struct {
	FileDirSlots     uint16 `json:"file_dir_slots"`
	TagDirSlots      uint16 `json:"tag_dir_slots"`
	TagLookupBytes   uint32 `json:"tag_lookup_bytes"`
	FileStorageBytes uint64 `json:"file_storage_bytes"`
}

// Default returns the spec's built-in default section shape (spec.md
// §4.2: 1024 file directory slots, 256 tag directory slots, 1024 x
// min(TLE size) tag lookup bytes, 1 GiB file storage).
func Default() Config {
	return Config{
		FileDirSlots:     1024,
		TagDirSlots:      256,
		TagLookupBytes:   1024 * (11 + 2*15),
		FileStorageBytes: 1 << 30,
	}
}

// Load reads a JSON config file, falling back to Default() for any field
// it doesn't set (and for the whole document when path is empty), the
// same "defaults, then overlay an optional file" shape as the teacher's
// config.Load.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects a config whose section sizes could never host a single
// record (spec.md §4.2's minimum shapes).
func (c Config) Validate() error {
	if c.FileDirSlots == 0 {
		return fmt.Errorf("config: file_dir_slots must be > 0")
	}
	if c.TagDirSlots == 0 {
		return fmt.Errorf("config: tag_dir_slots must be > 0")
	}
	if c.TagLookupBytes < 11+2*15 {
		return fmt.Errorf("config: tag_lookup_bytes must hold at least one minimum-size TLE node")
	}
	if c.TagLookupBytes > 1<<16-1 {
		return fmt.Errorf("config: tag_lookup_bytes must fit in TGLK's 16-bit section_bytes header field (max %d)", 1<<16-1)
	}
	if c.FileStorageBytes < 10 {
		return fmt.Errorf("config: file_storage_bytes must be >= 10")
	}
	return nil
}
