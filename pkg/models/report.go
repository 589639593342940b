package models

// TimelineEntry is one row in the report's reconstructed career/education
// timeline.
type TimelineEntry struct {
	Date   string `json:"date"`
	Event  string `json:"event"`
	Source string `json:"source"`
}

// KeywordOptimization summarizes profile keyword coverage for the fallback
// LinkedIn-style analysis.
type KeywordOptimization struct {
	Score              float64  `json:"score"`
	IdentifiedKeywords []string `json:"identified_keywords"`
	MissingKeywords    []string `json:"missing_keywords"`
}

// EngagementMetrics summarizes follower/connection traction.
type EngagementMetrics struct {
	Followers     int    `json:"followers"`
	Connections   int    `json:"connections"`
	TractionRating string `json:"traction_rating"`
	Analysis      string `json:"analysis"`
}

// EducationSection describes the completeness of the education section.
type EducationSection struct {
	Present bool   `json:"present"`
	Count   int    `json:"count"`
	Quality string `json:"quality"`
	Feedback string `json:"feedback"`
}

// ProfileSections holds per-section feedback.
type ProfileSections struct {
	Headline   string           `json:"headline"`
	About      string           `json:"about"`
	Experience string           `json:"experience"`
	Education  EducationSection `json:"education"`
}

// ProfileAnalysis is the optional quality-analysis block of a Report.
type ProfileAnalysis struct {
	CompletenessScore   float64             `json:"completeness_score"`
	ProfileStrength     string              `json:"profile_strength"`
	KeywordOptimization KeywordOptimization `json:"keyword_optimization"`
	EngagementMetrics   EngagementMetrics   `json:"engagement_metrics"`
	ProfileSections     ProfileSections     `json:"profile_sections"`
	Recommendations     []string            `json:"recommendations"`
}

// Report is the ephemeral, synthesized-on-demand output of one run. Never
// persisted by the core; §4.8 report retrieval rebuilds it from Evidence and
// Claims every time it is requested.
type Report struct {
	Summary                  string           `json:"summary"`
	KeyRoles                 []string         `json:"key_roles"`
	Timeline                 []TimelineEntry  `json:"timeline"`
	ConsentBadges            []string         `json:"consent_badges"`
	ConfidenceScore          float64          `json:"confidence_score"`
	LinkedInProfileAnalysis  *ProfileAnalysis `json:"linkedin_profile_analysis,omitempty"`
}
