// Package model defines the persisted shapes of comparison runs.
package model

import "time"

// RunStatus tracks a comparison run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records the inputs a comparison was started with.
type RunParams struct {
	SourceA   string `json:"source_a"`
	SourceB   string `json:"source_b"`
	BoundaryA string `json:"boundary_a,omitempty"`
	BoundaryB string `json:"boundary_b,omitempty"`
	Window    int    `json:"window"`
	Policy    string `json:"policy"`
	Workers   int    `json:"workers,omitempty"`
	K         int    `json:"k,omitempty"`
}

// ExtremalTile is the JSON-friendly record of one extremal selection.
type ExtremalTile struct {
	Index    int     `json:"index"`
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	Distance float64 `json:"distance"`
}

// RunSummary is the persisted outcome of a comparison run. The full matrix
// is not stored; exports carry it when needed.
type RunSummary struct {
	TilesA    int `json:"tiles_a"`
	TilesB    int `json:"tiles_b"`
	ExcludedA int `json:"excluded_a"`
	ExcludedB int `json:"excluded_b"`

	ExtremalA ExtremalTile `json:"extremal_a"`
	ExtremalB ExtremalTile `json:"extremal_b"`

	RowMinMean float64 `json:"row_min_mean"`
	ColMinMean float64 `json:"col_min_mean"`

	ClusterK    int     `json:"cluster_k,omitempty"`
	ClusterCost float64 `json:"cluster_cost,omitempty"`
	Medoids     []int   `json:"medoids,omitempty"`
}

// Run is one recorded comparison between two regions.
type Run struct {
	ID        string      `json:"id"`
	Params    RunParams   `json:"params"`
	Status    RunStatus   `json:"status"`
	Error     string      `json:"error,omitempty"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
