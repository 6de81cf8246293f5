package ingest

import (
	"fmt"

	"github.com/Sternrassler/tmdb-ingest/pkg/catalog"
)

// Stage identifies where in a run a failure happened.
type Stage string

const (
	// StageCursorRead covers loading the resume record.
	StageCursorRead Stage = "cursor_read"

	// StageCredential covers secret resolution and client construction.
	StageCredential Stage = "credential"

	// StageFetch covers the page fetch loop.
	StageFetch Stage = "fetch"

	// StageUpload covers the batch upload.
	StageUpload Stage = "upload"

	// StageCursorSave covers committing the advanced cursor.
	StageCursorSave Stage = "cursor_save"
)

// KindStorage is the error kind for failures of the run's own
// infrastructure (cursor record, blob store, secret provider), as
// opposed to failures of the upstream catalog.
const KindStorage = "storage"

// RunError wraps a run failure with the stage it happened in.
type RunError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Kind maps the failure to its externally visible kind: the catalog
// error class (authorization, upstream, transport) for fetch failures,
// storage for everything else.
func (e *RunError) Kind() string {
	if e.Stage == StageFetch {
		if class := catalog.ClassOf(e.Err); class != "" {
			return string(class)
		}
		return string(catalog.ClassUpstream)
	}
	return KindStorage
}
