package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type WorkloadType uint32

const (
	WorkloadFill  WorkloadType = 0
	WorkloadRead  WorkloadType = 1
	WorkloadParse WorkloadType = 2
	WorkloadAlloc WorkloadType = 3
)

// WorkloadName returns the flag/API name of a workload type.
func WorkloadName(t WorkloadType) string {
	switch t {
	case WorkloadFill:
		return "fill"
	case WorkloadRead:
		return "read"
	case WorkloadParse:
		return "parse"
	case WorkloadAlloc:
		return "alloc"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// ParseWorkload maps a workload name back to its type.
func ParseWorkload(name string) (WorkloadType, bool) {
	switch name {
	case "fill":
		return WorkloadFill, true
	case "read":
		return WorkloadRead, true
	case "parse":
		return WorkloadParse, true
	case "alloc":
		return WorkloadAlloc, true
	default:
		return 0, false
	}
}

// Result is one repetition trial. All fields are fixed width so the binary
// store can write records directly.
type Result struct {
	Timestamp  uint64       `json:"timestamp"` // monotonic ns at trial end
	Workload   WorkloadType `json:"workload"`
	Trial      uint32       `json:"trial"`
	SizeBytes  uint64       `json:"size_bytes"` // configured working-set size
	Ticks      uint64       `json:"ticks"`      // raw timer ticks elapsed
	Bytes      uint64       `json:"bytes"`      // bytes actually processed
	PageFaults uint64       `json:"page_faults"`
}

type Session struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	TimerSource string     `json:"timer_source"`
	TimerFreqHz uint64     `json:"timer_freq_hz"`
	ResultCount int64      `json:"result_count"`
}

type ResultFilter struct {
	Workload  *WorkloadType
	StartTime *uint64
	EndTime   *uint64
	Limit     int
	Offset    int
}

type ResultStore interface {
	WriteResult(result *Result) error
	WriteBatch(results []*Result) error
	ReadResults(ctx context.Context, filter *ResultFilter) ([]*Result, error)
	GetWorkloads(ctx context.Context) ([]WorkloadType, error)
	Close() error
	GetSession() *Session
	UpdateSession(session *Session) error
}

type SessionStore interface {
	ListSessions(ctx context.Context) ([]*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	OpenSession(ctx context.Context, id string) (ResultStore, error)
	CreateSession(ctx context.Context, session *Session, format string) (ResultStore, error)
	DeleteSession(ctx context.Context, id string) error
	io.Closer
}

func saveSessionMetadata(sessionDir string, session *Session) error {
	metadataPath := filepath.Join(sessionDir, "metadata.json")
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}

	return nil
}

func loadSessionMetadata(sessionDir string) (*Session, error) {
	metadataPath := filepath.Join(sessionDir, "metadata.json")
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("read session metadata: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session metadata: %w", err)
	}

	return &session, nil
}

func matchesFilter(result *Result, filter *ResultFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Workload != nil && result.Workload != *filter.Workload {
		return false
	}
	if filter.StartTime != nil && result.Timestamp < *filter.StartTime {
		return false
	}
	if filter.EndTime != nil && result.Timestamp > *filter.EndTime {
		return false
	}
	return true
}
