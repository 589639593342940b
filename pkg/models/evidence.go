package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ContentKind identifies the shape of Evidence.Content.
type ContentKind string

const (
	ContentKindJSON ContentKind = "json"
	ContentKindHTML ContentKind = "html"
	ContentKindText ContentKind = "text"
)

// ExtractionCandidate is one claim candidate surfaced by the extractor before
// it becomes a durable Claim.
type ExtractionCandidate struct {
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the attached-once-per-evidence result of the extraction stage.
// Present on Evidence only after the extractor has run against it.
type Extraction struct {
	Entities []string               `json:"entities"`
	Claims   []ExtractionCandidate  `json:"claims"`
}

// Evidence is one raw record returned by the scraper, bound to a run via
// Subject, paired with metadata (source, hash, timestamp). Created by the
// harvester, mutated only by the extractor (to attach Extraction), never
// deleted.
type Evidence struct {
	ID          string
	Subject     string
	Source      string
	CollectedAt time.Time
	Content     string
	ContentKind ContentKind
	Hash        string
	Extraction  *Extraction
}

// HashContent computes the deterministic SHA-256 hex digest of raw content.
// Evidence.Hash must always equal HashContent(Evidence.Content).
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
