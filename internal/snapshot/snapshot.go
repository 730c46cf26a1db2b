// Package snapshot loads point-in-time exports of the upstream
// collections the engine computes over. A snapshot is either a directory
// of per-collection JSON array files or a single combined file.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/attendhq/attend/internal/record"
)

// Snapshot is an immutable view of all raw records at one instant.
// The engine never mutates it; every build re-reads from here.
type Snapshot struct {
	Calls  []record.Record `json:"calls"`
	Spaces []record.Record `json:"spaces"`
	Tasks  []record.Record `json:"tasks"`
	Events []record.Record `json:"events"`
}

// Load reads a snapshot directory. Per-collection files (calls.json,
// spaces.json, tasks.json, events.json) are optional; a missing file is
// an empty collection, not an error. If a combined snapshot.json exists
// it takes precedence.
func Load(dir string) (*Snapshot, error) {
	combined := filepath.Join(dir, "snapshot.json")
	if _, err := os.Stat(combined); err == nil {
		return LoadFile(combined)
	}

	snap := &Snapshot{}
	for name, dst := range map[string]*[]record.Record{
		"calls.json":  &snap.Calls,
		"spaces.json": &snap.Spaces,
		"tasks.json":  &snap.Tasks,
		"events.json": &snap.Events,
	} {
		records, err := loadArray(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		*dst = records
	}
	return snap, nil
}

// LoadFile reads a combined snapshot file with the four collection keys.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return snap, nil
}

func loadArray(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []record.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
