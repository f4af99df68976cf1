package indexer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// SyncMode decides whether a task runs within the save, or later on a
// job queue worker.
type SyncMode int

const (
	Inline SyncMode = iota
	Deferred
)

func (m SyncMode) String() string {
	switch m {
	case Inline:
		return "inline"
	case Deferred:
		return "deferred"
	default:
		return fmt.Sprintf("SyncMode(%d)", int(m))
	}
}

// ParseSyncMode accepts inline and deferred, in any case.
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inline", "":
		return Inline, nil
	case "deferred":
		return Deferred, nil
	}
	return Inline, fmt.Errorf("Invalid sync mode: %q", s)
}

func (m SyncMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *SyncMode) UnmarshalText(text []byte) error {
	mode, err := ParseSyncMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Task is the unit of fan out work: regenerate the documents of all the
// ParentKind entities embedding the ChildKind entity ChildId. It only
// carries identities, so it survives serialization unchanged.
type Task struct {
	ParentKind string `json:"parent_kind"`
	ChildKind  string `json:"child_kind"`
	ChildId    string `json:"child_id"`
}

func (t Task) String() string {
	return fmt.Sprintf("%s<-%s:%s", t.ParentKind, t.ChildKind, t.ChildId)
}

func (t Task) Validate() error {
	if len(t.ParentKind) == 0 || len(t.ChildKind) == 0 {
		return errors.New("Task has no kinds set")
	}
	if len(t.ChildId) == 0 {
		return errors.New("Task has no child id")
	}
	return nil
}

// Encode serializes the task for a job queue.
func (t Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask parses a task serialized by Encode.
func DecodeTask(buf []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(buf, &t); err != nil {
		return t, err
	}
	return t, t.Validate()
}
