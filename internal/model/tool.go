package model

import "time"

// ToolDescriptor is the cached resolution state of one external tool.
// Descriptors are created and mutated only by the registry; callers get
// copies via Snapshot.
//
// Invariant: Available == true implies Path was verified to exist at
// LastChecked.
type ToolDescriptor struct {
	Name        string    `json:"name"`
	Path        string    `json:"path,omitempty"`
	Version     string    `json:"version"`
	Available   bool      `json:"available"`
	Source      string    `json:"source,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	// SearchPaths are user supplied directories probed before any default
	// resolution strategy, in order.
	SearchPaths []string `json:"search_paths,omitempty"`
	// Pinned marks a descriptor set via an explicit override. Pinned paths
	// are never re-resolved automatically.
	Pinned bool `json:"pinned,omitempty"`
}
