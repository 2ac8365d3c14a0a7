package engine

import (
	"errors"
	"fmt"
)

// ErrRunAborted marks assets skipped because the run stopped early.
var ErrRunAborted = errors.New("run aborted")

// AssetComputationError wraps a failure returned (or panicked) by an asset's
// own logic.
type AssetComputationError struct {
	Asset string
	Err   error
}

func (e *AssetComputationError) Error() string {
	return fmt.Sprintf("asset %q failed: %v", e.Asset, e.Err)
}

func (e *AssetComputationError) Unwrap() error { return e.Err }

// MissingUpstreamOutputError explains why an asset was skipped: one of its
// upstreams did not succeed.
type MissingUpstreamOutputError struct {
	Asset          string
	Upstream       string
	UpstreamStatus string
}

func (e *MissingUpstreamOutputError) Error() string {
	return fmt.Sprintf("asset %q skipped: upstream %q %s", e.Asset, e.Upstream, e.UpstreamStatus)
}
