package processor

import (
	"squeeze/internal/codec"
	"squeeze/internal/control"
	"squeeze/internal/search"
)

// Job is one discovered input file.
type Job struct {
	Path    string // absolute
	RelPath string // relative to the input root, slash separated
	Size    int64
}

// Deps are the collaborators of a batch run. Only Backend is required.
type Deps struct {
	Backend    codec.Backend
	Controller *control.Controller
	Observer   search.Observer
	// Updates receives progress for a UI. The caller owns the channel and
	// closes it after Run returns.
	Updates chan<- ProgressUpdate
}

type Summary struct {
	Total     int
	Processed int // files written, encoded or copied
	Copied    int
	Skipped   int
	Failed    int
	BytesIn   int64
	BytesOut  int64
	Stopped   bool
}

type ProgressUpdate struct {
	TotalDelta     int
	ProcessedDelta int
	SkippedDelta   int
	ErrorDelta     int
	BytesInDelta   int64
	BytesOutDelta  int64

	// Current is set when a file starts.
	Current string
	// Quality and SizeKB report the latest trial of the current file.
	Quality int
	SizeKB  float64
}
