package models

import "time"

// Controlled predicate vocabulary the synthesizer understands (§4.5). The
// extractor may emit other predicates; these are just the interoperable core.
const (
	PredicateHasName        = "has_name"
	PredicateWorksAt        = "works_at"
	PredicateHasTitle       = "has_title"
	PredicateLocatedIn      = "located_in"
	PredicateHasAbout       = "has_about"
	PredicateGraduatedFrom  = "graduated_from"
	PredicateHasDegree      = "has_degree"
	PredicateHasSkill       = "has_skill"
	PredicateHasFollowers   = "has_followers"
	PredicateHasConnections = "has_connections"
	PredicateGraduationYear = "graduation_year"
	PredicateHasEmail       = "has_email"
	PredicateHasPhone       = "has_phone"
)

// Provenance points a Claim back at the Evidence it was extracted from.
type Provenance struct {
	Source      string    `json:"source"`
	EvidenceID  string    `json:"evidence_id"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Claim is one typed predicate-object assertion extracted from evidence,
// with a confidence and provenance. Created by the extractor, tagged by the
// verifier, stored by the orchestrator. Every stored Claim is approved.
type Claim struct {
	ID             string
	Subject        string
	Predicate      string
	Object         string
	Confidence     float64
	FirstSeenAt    time.Time
	LastVerifiedAt time.Time
	Provenance     Provenance
	PolicyTags     []string
}

// HasTag reports whether the claim carries the given policy tag.
func (c *Claim) HasTag(tag string) bool {
	for _, t := range c.PolicyTags {
		if t == tag {
			return true
		}
	}
	return false
}
