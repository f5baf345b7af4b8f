// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching constants
const (
	// DefaultMatchTolerance is the default maximum Euclidean distance for
	// resolving a query encoding to an enrolled identity.
	// Lower values = stricter matching
	DefaultMatchTolerance = 0.45

	// DefaultDuplicateThreshold is the default maximum Euclidean distance at
	// which a new capture is considered the face of an already enrolled identity.
	DefaultDuplicateThreshold = 0.45

	// CompareFacesTolerance is the fixed threshold used by the coarse
	// "any stored encoding is close enough" comparison.
	CompareFacesTolerance = 0.6

	// UnknownLabel is shown for faces that resolve to no identity
	UnknownLabel = "Unknown"
)

// Enrollment constants
const (
	// DefaultCaptureCount is the number of accepted single-face captures
	// required before an identity is committed.
	DefaultCaptureCount = 5

	// MaxCaptureCount caps CAPTURE_COUNT
	MaxCaptureCount = 50

	// ArtifactExt is the file extension of staged enrollment photos
	ArtifactExt = ".jpg"

	// MaxStagedPhotos bounds the numbering search for a free photo name
	MaxStagedPhotos = 10000

	// RegistrationIdleTimeout is how long a capturing registration may go
	// without a capture before a new registration can take over
	RegistrationIdleTimeout = 5 * time.Minute
)

// Attendance constants
const (
	// TimestampLayout is the ledger and remote wire format for attendance timestamps
	TimestampLayout = "2006-01-02 15:04:05"
	// OffsetLayout is the UTC offset written next to each ledger timestamp
	OffsetLayout = "-07:00"

	// DefaultCooldown is the minimum gap between two records of one identity
	// under the cooldown policy.
	DefaultCooldown = time.Hour

	// LedgerColumns is the number of columns of a well-formed ledger row
	LedgerColumns = 3
)

// Face filter constants
const (
	// MinFaceWidthPx is the absolute minimum face width in pixels.
	// Smaller detections are ignored during recognition.
	MinFaceWidthPx = 35

	// MinFaceWidthRel is the minimum face width relative to frame width (1%)
	MinFaceWidthRel = 0.01
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the extractor
	MaxImageSize = 1920

	// ResizeJPEGQuality is the JPEG quality used after downscaling
	ResizeJPEGQuality = 85

	// DefaultConcurrency is the default number of parallel extraction workers
	DefaultConcurrency = 4

	// DefaultFrameRate is the default number of frames per second processed
	DefaultFrameRate = 2.0

	// DefaultSyncTimeout bounds every remote call
	DefaultSyncTimeout = 10 * time.Second

	// DefaultExtractTimeout bounds one feature extraction request
	DefaultExtractTimeout = 60 * time.Second
)

// Handler constants
const (
	// DefaultAttendanceLimit is the default number of ledger rows returned
	DefaultAttendanceLimit = 100

	// MaxAttendanceLimit caps the ledger rows returned by a single request
	MaxAttendanceLimit = 10000

	// DefaultNeighborCount is the default number of candidates returned by identify
	DefaultNeighborCount = 5

	// MaxFrameSize is the maximum accepted upload size for one frame (20MB)
	MaxFrameSize = 20 << 20

	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
