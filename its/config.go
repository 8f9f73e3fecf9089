package its

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/embeddedkv/itstore/flashlog"
	"github.com/embeddedkv/itstore/observability"
)

// Backend selectors for Config.Backend. One backend is active per store;
// the choice is made at construction, not per call.
const (
	BackendRAM   = "ram"
	BackendFlash = "flash"
)

// Config holds store initialization parameters.
type Config struct {
	Backend     string          `json:"backend,omitempty"`       // "ram" (default) or "flash"
	MaxEntries  int             `json:"max_entries,omitempty"`   // RAM backend slot count
	MaxItemSize uint32          `json:"max_item_size,omitempty"` // per-object payload bound
	Observer    string          `json:"observer,omitempty"`      // named observer in the registry
	Flash       flashlog.Config `json:"flash"`                   // flash backend geometry
}

// DefaultConfig returns the default store configuration: the RAM backend
// with 8 slots of 1024 bytes, logging through slog.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendRAM,
		MaxEntries:  DefaultMaxEntries,
		MaxItemSize: DefaultMaxItemSize,
		Observer:    "slog",
		Flash:       flashlog.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating the flash
// section to its own Merge.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.MaxEntries > 0 {
		c.MaxEntries = source.MaxEntries
	}
	if source.MaxItemSize > 0 {
		c.MaxItemSize = source.MaxItemSize
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	c.Flash.Merge(&source.Flash)
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

// NewStore creates a Store from configuration, selecting and initializing
// the configured backend. For the flash backend this is the one-shot
// bind/verify/mount sequence; a mount failure is reported as an I/O error
// and no usable store is returned.
func NewStore(cfg *Config, opts ...Option) (Store, error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}
	opts = append([]Option{WithObserver(observer)}, opts...)

	switch cfg.Backend {
	case "", BackendRAM:
		return NewRAMStore(cfg.MaxEntries, cfg.MaxItemSize, opts...), nil

	case BackendFlash:
		dev, err := openDevice(&cfg.Flash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}

		fs, err := flashlog.Mount(dev, &cfg.Flash)
		if err != nil {
			return nil, fmt.Errorf("%w: mount: %v", ErrIO, err)
		}

		emit(context.Background(), observer, flashSource, EventMount, observability.LevelInfo, map[string]any{
			"fs_id":        fs.ID(),
			"path":         cfg.Flash.Path,
			"sector_count": cfg.Flash.SectorCount,
			"live_objects": fs.Len(),
		})
		return NewFlashStore(fs, cfg.MaxItemSize, opts...), nil

	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

// openDevice binds the flash backend to its medium: a file-backed flash
// image when a path is configured, otherwise a RAM-simulated device.
func openDevice(cfg *flashlog.Config) (flashlog.Device, error) {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = flashlog.DefaultConfig().PageSize
	}
	sectorCount := cfg.SectorCount
	if sectorCount <= 0 {
		sectorCount = flashlog.DefaultSectorCount
	}

	if cfg.Path == "" {
		return flashlog.NewMemDevice(pageSize, sectorCount), nil
	}
	return flashlog.OpenFileDevice(cfg.Path, pageSize, sectorCount)
}
