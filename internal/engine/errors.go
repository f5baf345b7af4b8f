package engine

import (
	"errors"

	"github.com/kozaktomas/visagium/internal/database"
)

var (
	// ErrValidation is returned for missing or malformed operator input.
	ErrValidation = errors.New("validation error")
	// ErrNoFaceDetected means a capture frame contained no face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrMultipleFacesDetected means a capture frame contained more than one face.
	ErrMultipleFacesDetected = errors.New("multiple faces detected")
	// ErrDuplicateFace aborts a registration whose face is already enrolled.
	ErrDuplicateFace = errors.New("face is already registered")
	// ErrNotFound is returned when deleting an identity that is not enrolled.
	ErrNotFound = errors.New("identity not found")
	// ErrSyncFailure wraps every failed or rejected remote call.
	ErrSyncFailure = errors.New("remote sync failed")
	// ErrStoreCorruption signals a violated store invariant.
	ErrStoreCorruption = database.ErrStoreCorruption
	// ErrRegistrationActive is returned when a second registration is started.
	ErrRegistrationActive = errors.New("another registration is in progress")
	// ErrRegistrationClosed is returned when a finished registration is used again.
	ErrRegistrationClosed = errors.New("registration is no longer capturing")
)
