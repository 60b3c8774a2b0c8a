package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is written into every persisted snapshot.
const SnapshotVersion = 1

// Snapshot is the durable projection of the queue. In-flight process handles
// are never part of it.
type Snapshot struct {
	Version  int       `json:"version"`
	Mode     Mode      `json:"mode"`
	Cursor   string    `json:"cursor,omitempty"`
	Projects []Project `json:"projects"`
	SavedAt  time.Time `json:"saved_at"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Projects = make([]Project, len(s.Projects))
	for i := range s.Projects {
		cp.Projects[i] = *s.Projects[i].Clone()
	}
	return cp
}

// Find returns the project with the given id.
func (s Snapshot) Find(id string) (*Project, bool) {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			return &s.Projects[i], true
		}
	}
	return nil, false
}

// MarshalSnapshot encodes a snapshot for storage.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if s.Projects == nil {
		s.Projects = []Project{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes stored bytes. Unknown fields are ignored and
// missing or unrecognized statuses default to Pending.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Mode == "" {
		s.Mode = ModeIdle
	}
	for i := range s.Projects {
		project := &s.Projects[i]
		project.Status = normalizeStatus(project.Status)
		for j := range project.Files {
			project.Files[j].Status = normalizeStatus(project.Files[j].Status)
			project.Files[j].Progress = clampFraction(project.Files[j].Progress)
		}
	}
	return s, nil
}

// RecoverSnapshot prepares a loaded snapshot for a fresh process. Projects and
// files left Processing by an interrupted run go back to Pending, the
// interrupted file restarts from zero, and the queue starts Idle. It returns
// the number of files that were reset.
func RecoverSnapshot(s Snapshot) (Snapshot, int) {
	s = s.Clone()
	reset := 0
	for i := range s.Projects {
		project := &s.Projects[i]
		for j := range project.Files {
			if project.Files[j].Status == StatusProcessing {
				project.Files[j].Reset()
				reset++
			}
		}
		if project.Status == StatusProcessing {
			project.Status = StatusPending
			project.CompletedAt = nil
		}
	}
	s.Mode = ModeIdle
	s.Cursor = ""
	return s, reset
}

func normalizeStatus(status Status) Status {
	if parsed, ok := ParseStatus(string(status)); ok {
		return parsed
	}
	return StatusPending
}
