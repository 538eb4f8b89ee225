package kairosdb

import "errors"

// Sentinel errors for KairosDB REST operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, kairosdb.ErrRequestFailed) {
//	    // Backend unreachable
//	}
var (
	// ErrInvalidRequest indicates the request could not be built (bad URL or method).
	ErrInvalidRequest = errors.New("kairosdb: invalid request")

	// ErrRequestFailed indicates the HTTP exchange failed at the transport level.
	ErrRequestFailed = errors.New("kairosdb: request failed")

	// ErrReadFailed indicates the response body could not be read.
	ErrReadFailed = errors.New("kairosdb: reading response failed")

	// ErrUnhealthy indicates the backend answered the health probe with a non-200 status.
	ErrUnhealthy = errors.New("kairosdb: unhealthy")
)
