package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/coverage"
	"github.com/cedarwud/ntn-stack-sub027/internal/selection"
)

// ObserverInfo echoes the ground station the run was computed for.
type ObserverInfo struct {
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	AltitudeM    float64 `json:"altitude_m"`
}

// WindowInfo describes the resolved sampling window of one constellation.
type WindowInfo struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	IntervalSeconds float64   `json:"interval_seconds"`
	Samples         int       `json:"samples"`
}

// RunStats counts what happened to one constellation on the way from TLE
// text to a validated pool.
type RunStats struct {
	RecordsLoaded       int        `json:"records_loaded"`
	RecordsExcluded     int        `json:"records_excluded"`
	SeriesBuilt         int        `json:"series_built"`
	InitFailures        int        `json:"init_failures"`
	PropagationFailures int        `json:"propagation_failures"`
	PlaneCount          int        `json:"plane_count"`
	PlaneUniformity     float64    `json:"plane_uniformity"`
	Window              WindowInfo `json:"window"`
}

// ConstellationResult is the outcome for one constellation. A failed
// constellation carries Err (and its text for serialization) with a nil
// Pool; it never aborts the other constellations.
type ConstellationResult struct {
	Constellation constellation.ID `json:"constellation"`
	Pool          *selection.Pool  `json:"pool,omitempty"`
	Coverage      *coverage.Report `json:"coverage,omitempty"`
	Stats         RunStats         `json:"stats"`
	ErrorText     string           `json:"error,omitempty"`
	Err           error            `json:"-"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	GeneratedAt    time.Time             `json:"generated_at"`
	Observer       ObserverInfo          `json:"observer"`
	Constellations []ConstellationResult `json:"constellations"`
}

// AllFailed reports whether no constellation produced a pool.
func (r *Result) AllFailed() bool {
	for _, cr := range r.Constellations {
		if cr.Err == nil {
			return false
		}
	}
	return true
}

// WriteResult serializes the result as JSON (the default) or YAML. The YAML
// form goes through the JSON field names so both formats expose identical
// keys.
func WriteResult(w io.Writer, res *Result, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml", "yml":
		raw, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
