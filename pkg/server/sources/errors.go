// Package sources provides the price reader interface and its shared plumbing.
package sources

import "errors"

var (
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrAPIError indicates an error object returned by the remote API.
	ErrAPIError = errors.New("API error")
	// ErrInvalidResponse indicates an invalid response from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownSource indicates a source type with no registered factory.
	ErrUnknownSource = errors.New("unknown source")
	// ErrSourceNotConfigured indicates a read for the all-zero feed identifier.
	ErrSourceNotConfigured = errors.New("source feed identifier not configured")
	// ErrFeedMismatch indicates a response for a different feed than requested.
	ErrFeedMismatch = errors.New("feed identifier mismatch")
	// ErrStalePrice indicates a price older than the allowed age.
	ErrStalePrice = errors.New("price is stale")
	// ErrNegativePrice indicates a negative reported price.
	ErrNegativePrice = errors.New("negative price")
	// ErrAccountNotFound indicates that the feed account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountOwner indicates a feed account owned by an unexpected program.
	ErrAccountOwner = errors.New("unexpected account owner")
	// ErrAccountTooShort indicates account data too small for the configured layout.
	ErrAccountTooShort = errors.New("account data too short")
)
