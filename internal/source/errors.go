package source

import (
	"fmt"

	"github.com/agenthub-dev/agenthub/internal/redact"
)

// Common errors
var (
	ErrNotFound     = fmt.Errorf("source not found")
	ErrExists       = fmt.Errorf("source already exists")
	ErrNotRemovable = fmt.Errorf("source is not removable")
	ErrInvalidSpec  = fmt.Errorf("invalid source spec")
)

// SourceError wraps an error with the operation and source it concerns.
type SourceError struct {
	Op     string
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// SyncError is a transport failure while fetching a source. Its message
// is redacted at construction so it can travel anywhere.
type SyncError struct {
	SourceID string
	Stage    string // clone, fetch, ls-remote
	Detail   string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %s failed: %s", e.SourceID, e.Stage, e.Detail)
}

func newSyncError(sourceID, stage string, err error) *SyncError {
	return &SyncError{SourceID: sourceID, Stage: stage, Detail: redact.Error(err)}
}
