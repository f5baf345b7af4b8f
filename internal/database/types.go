package database

import (
	"time"

	"github.com/kozaktomas/visagium/internal/facematch"
)

// AttendanceRecord is one accepted attendance mark.
type AttendanceRecord struct {
	IdentityID   string    `json:"identity_id"`
	IdentityName string    `json:"identity_name"`
	Timestamp    time.Time `json:"timestamp"`
}

// IdentitySummary describes one enrolled identity in a store snapshot.
type IdentitySummary struct {
	facematch.Identity
	Encodings int `json:"encodings"`
}

// LegacyExport is the three parallel sequences layout of older encoding dumps.
type LegacyExport struct {
	Encodings [][]float32 `json:"encodings"`
	Names     []string    `json:"names"`
	IDs       []string    `json:"ids"`
}
