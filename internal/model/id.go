package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// RunTimestampLayout formats a run timestamp as YYYYMMDD_HHMMSS.
const RunTimestampLayout = "20060102_150405"

// NewRunID generates a ULID whose timestamp component is the run time, so run
// identifiers sort by when the run was triggered.
func NewRunID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// FormatRunTimestamp renders the run time in UTC using RunTimestampLayout.
func FormatRunTimestamp(at time.Time) string {
	return at.UTC().Format(RunTimestampLayout)
}
