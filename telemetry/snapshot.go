package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete simulation state at one tick: the gamma
// field plus all entities. This is everything the substrate carries
// between ticks, so it doubles as the fatal-error state dump.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`
	Tick    int32 `json:"tick"`

	Topology  string    `json:"topology"`
	NodeCount int       `json:"node_count"`
	Gamma     []float64 `json:"gamma"`

	Entities []EntityState `json:"entities"`

	// Reason is set on fatal dumps (e.g. non-finite value detected).
	Reason string `json:"reason,omitempty"`
}

// EntityState holds one entity's complete state.
type EntityState struct {
	ID      uint32  `json:"id"`
	Kind    string  `json:"kind"`
	Species uint8   `json:"species"`
	Node    int32   `json:"node"`
	Speed   float64 `json:"speed"`
	Energy  float64 `json:"energy"`
	Mode    int32   `json:"mode"`
	Phase   float64 `json:"phase"`
}

// WriteSnapshot saves a snapshot as JSON under dir.
func WriteSnapshot(dir string, snap *Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	name := fmt.Sprintf("snapshot_%08d.json", snap.Tick)
	if snap.Reason != "" {
		name = fmt.Sprintf("fatal_%08d.json", snap.Tick)
	}
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}

// ReadSnapshot loads a snapshot from a JSON file.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported (want %d)", snap.Version, SnapshotVersion)
	}
	return snap, nil
}
