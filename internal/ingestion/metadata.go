package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Metadata describes where an ingested document came from
type Metadata struct {
	Source    string `json:"source"`             // File path or URL
	Format    Format `json:"format"`             // Detected input format
	Timestamp string `json:"timestamp"`          // RFC3339 format
	Hash      string `json:"hash"`               // SHA256 hex digest of the extracted text
	Platform  string `json:"platform,omitempty"` // Detected job board platform
}

// NewMetadata creates a new Metadata instance with current timestamp
func NewMetadata(content, source string, format Format) *Metadata {
	return &Metadata{
		Source:    source,
		Format:    format,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hash:      computeHash(content),
	}
}

// computeHash computes SHA256 hash of content and returns hex string
func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
