package database

// HNSW index parameters for face encodings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// so that enough distinct identities remain after grouping.
	HNSWSearchMultiplier = 3
)

// File store format
const (
	encodingFileVersion = 1
	ledgerHeaderID      = "ID"
	ledgerHeaderName    = "Name"
	ledgerHeaderTime    = "Timestamp"
	ledgerHeaderOffset  = "Offset"
)
