package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/rockfall/internal/input"
	"github.com/banshee-data/rockfall/internal/shaft"
)

// DefaultConfigPath is the path to the canonical simulation defaults file.
const DefaultConfigPath = "config/rockfall.defaults.json"

// SimulationConfig is the root configuration for a stacking run. Nil fields
// fall back to the Get* defaults, so partial files are safe.
type SimulationConfig struct {
	Width       *int `json:"width,omitempty"`
	SpawnGap    *int `json:"spawn_gap,omitempty"`
	SpawnColumn *int `json:"spawn_column,omitempty"`

	// Rows kept in a surface fingerprint. Must exceed the tallest piece.
	SurfaceCap *int `json:"surface_cap,omitempty"`
	// Cache misses allowed per extrapolation; 0 disables the budget.
	MaxSimulatedCycles *int `json:"max_simulated_cycles,omitempty"`

	// Pieces are drawings in drop order, one string per row, top row first,
	// '#' filled and '.' empty. Omitted means the standard five shapes.
	Pieces [][]string `json:"pieces,omitempty"`
}

func ptrInt(v int) *int { return &v }

// EmptySimulationConfig returns a SimulationConfig with all fields unset.
func EmptySimulationConfig() *SimulationConfig {
	return &SimulationConfig{}
}

// DefaultSimulationConfig returns a config with every scalar field set to
// its default.
func DefaultSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		Width:              ptrInt(7),
		SpawnGap:           ptrInt(3),
		SpawnColumn:        ptrInt(2),
		SurfaceCap:         ptrInt(50),
		MaxSimulatedCycles: ptrInt(0),
	}
}

// LoadSimulationConfig loads a SimulationConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseSimulationConfig(data)
}

// ParseSimulationConfig decodes and validates JSON config bytes.
func ParseSimulationConfig(data []byte) (*SimulationConfig, error) {
	cfg := EmptySimulationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for tests and command defaults.
func MustLoadDefaultConfig() *SimulationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSimulationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the configuration values are valid. Errors wrap
// shaft.ErrInvalidInput.
func (c *SimulationConfig) Validate() error {
	if c.Width != nil && *c.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d: %w", *c.Width, shaft.ErrInvalidInput)
	}
	if c.SpawnGap != nil && *c.SpawnGap < 0 {
		return fmt.Errorf("spawn_gap must be non-negative, got %d: %w", *c.SpawnGap, shaft.ErrInvalidInput)
	}
	if c.SpawnColumn != nil && *c.SpawnColumn < 0 {
		return fmt.Errorf("spawn_column must be non-negative, got %d: %w", *c.SpawnColumn, shaft.ErrInvalidInput)
	}
	if c.MaxSimulatedCycles != nil && *c.MaxSimulatedCycles < 0 {
		return fmt.Errorf("max_simulated_cycles must be non-negative, got %d: %w", *c.MaxSimulatedCycles, shaft.ErrInvalidInput)
	}

	rep, err := c.GetRepertoire()
	if err != nil {
		return err
	}
	if err := rep.Validate(c.GetWidth()); err != nil {
		return err
	}
	if h := rep.MaxHeight(); c.GetSurfaceCap() <= h {
		return fmt.Errorf("surface_cap %d must exceed the tallest piece (%d rows): %w", c.GetSurfaceCap(), h, shaft.ErrInvalidInput)
	}
	return nil
}

// GetWidth returns the shaft width or the default.
func (c *SimulationConfig) GetWidth() int {
	if c.Width == nil {
		return 7
	}
	return *c.Width
}

// GetSpawn returns the spawn placement built from spawn_gap and
// spawn_column.
func (c *SimulationConfig) GetSpawn() shaft.Spawn {
	s := shaft.DefaultSpawn
	if c.SpawnGap != nil {
		s.Gap = *c.SpawnGap
	}
	if c.SpawnColumn != nil {
		s.Column = *c.SpawnColumn
	}
	return s
}

// GetSurfaceCap returns the fingerprint row cap or the default.
func (c *SimulationConfig) GetSurfaceCap() int {
	if c.SurfaceCap == nil {
		return 50
	}
	return *c.SurfaceCap
}

// GetMaxSimulatedCycles returns the cycle budget; 0 means unbounded.
func (c *SimulationConfig) GetMaxSimulatedCycles() int {
	if c.MaxSimulatedCycles == nil {
		return 0
	}
	return *c.MaxSimulatedCycles
}

// GetRepertoire parses the configured drawings, or returns the standard
// repertoire when none are set.
func (c *SimulationConfig) GetRepertoire() (shaft.Repertoire, error) {
	if len(c.Pieces) == 0 {
		return shaft.StandardRepertoire(), nil
	}
	rep := make(shaft.Repertoire, 0, len(c.Pieces))
	for i, rows := range c.Pieces {
		p, err := input.ParsePiece(strings.Join(rows, "\n"))
		if err != nil {
			return nil, fmt.Errorf("pieces[%d]: %w", i, err)
		}
		rep = append(rep, p)
	}
	return rep, nil
}
