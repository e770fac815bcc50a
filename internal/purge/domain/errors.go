package domain

import "errors"

// Transport outcomes for a single remote call.
var (
	ErrNotFound             = errors.New("item not found")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrQuotaExhausted       = errors.New("api quota exhausted")
	ErrRequestFailed        = errors.New("api request failed")
	ErrTransportUnavailable = errors.New("api transport unavailable")
)

// Setup errors. These end the process before any work is done.
var (
	ErrArchiveNotFound = errors.New("archive file not found")
	ErrUnauthenticated = errors.New("could not fetch authenticated user")
)

// RemoteProblem is an error answer from the remote API. Problem returns only
// the text the API sent, never request details such as paths or ids.
type RemoteProblem interface {
	error
	Status() int
	Problem() string
}
