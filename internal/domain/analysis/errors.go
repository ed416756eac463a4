package analysis

import "errors"

// ErrNotFound indicates the requested record does not exist for the tenant.
var ErrNotFound = errors.New("record not found")

// ErrNarrativeUnavailable indicates no narrative backend is configured.
var ErrNarrativeUnavailable = errors.New("narrative backend not configured")
