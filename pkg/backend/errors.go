package backend

import "errors"

// Sentinel errors shared by all backends. Wrap with fmt.Errorf("...: %w", err)
// and match with errors.Is.
var (
	// ErrBackendUnavailable marks transport failures, timeouts, and auth
	// failures: the backend could not be reached or refused the session.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendRejected marks an explicit refusal of a well-formed request,
	// including missing required parameters.
	ErrBackendRejected = errors.New("backend rejected request")

	// ErrMalformedResponse marks a response that could not be decoded. The
	// aggregator treats it like a rejection.
	ErrMalformedResponse = errors.New("malformed backend response")

	// ErrResolutionExpired marks a resolution token the backend no longer
	// recognizes. The caller must re-enumerate.
	ErrResolutionExpired = errors.New("resolution token expired")

	// ErrNoEligibleBackends is returned when capability filtering leaves no
	// backend to query for an item.
	ErrNoEligibleBackends = errors.New("no eligible backends for item")

	// ErrAllBackendsFailed is returned when every eligible backend failed
	// during aggregation.
	ErrAllBackendsFailed = errors.New("all backends failed")
)
