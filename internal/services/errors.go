package services

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Error taxonomy for the record store and renderers. Handlers map these to
// HTTP statuses; everything else is wrapped ErrStoreUnavailable.
var (
	// ErrPermissionDenied means the backend rejected the caller's access to
	// the user's records.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStoreUnavailable covers network and backend faults.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrValidationFailure is a caller-side problem detected before any
	// store call (missing required field).
	ErrValidationFailure = errors.New("validation failure")

	// ErrRenderFailure means a renderer could not produce the document.
	ErrRenderFailure = errors.New("render failure")
)

// Mongo "not authorized" server error code.
const mongoCodeUnauthorized = 13

// isPermissionDenied detects authorization failures from the backend.
func isPermissionDenied(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Code == mongoCodeUnauthorized {
			return true
		}
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == mongoCodeUnauthorized {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not authorized") || strings.Contains(msg, "unauthorized")
}

// isIndexCapabilityError detects faults caused by a missing or unusable
// index. The save path must not fail the caller on these; it falls back to
// an unconditional insert instead.
func isIndexCapabilityError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "index")
}

// upsertDisposition is how the save path recovers from a driver error.
type upsertDisposition int

const (
	upsertUnavailable upsertDisposition = iota
	upsertRetry
	upsertPermission
	upsertInsertFallback
)

// classifyUpsertError maps a keyed-upsert failure to its recovery path.
// Duplicate-key must be checked first: its message names the violated
// index, so the index-capability check would otherwise swallow it.
func classifyUpsertError(err error) upsertDisposition {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return upsertRetry
	case isPermissionDenied(err):
		return upsertPermission
	case isIndexCapabilityError(err):
		return upsertInsertFallback
	default:
		return upsertUnavailable
	}
}
