package synthesizer

import (
	"fmt"
	"strings"

	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/scraper"
)

// fallbackReport reconstructs a full report deterministically from a
// profile-shaped payload, per §4.7's fallback path.
func fallbackReport(profile *scraper.Profile, claims []models.Claim) models.Report {
	completeness := completenessScore(profile)
	return models.Report{
		Summary:         buildSummary(profile),
		KeyRoles:        keyRoles(profile),
		Timeline:        timeline(profile),
		ConfidenceScore: 0.9,
		LinkedInProfileAnalysis: &models.ProfileAnalysis{
			CompletenessScore:   completeness,
			ProfileStrength:     profileStrength(completeness),
			KeywordOptimization: keywordOptimization(profile, claims),
			EngagementMetrics:   engagementMetrics(profile),
			ProfileSections:     profileSections(profile),
			Recommendations:     recommendations(profile),
		},
	}
}

func magnitudeQualifier(n int) string {
	switch {
	case n >= 10000:
		return "a large"
	case n >= 1000:
		return "a moderate"
	case n > 0:
		return "a small"
	default:
		return "no"
	}
}

func buildSummary(p *scraper.Profile) string {
	var b strings.Builder
	if p.Name != "" {
		b.WriteString(p.Name)
	} else {
		b.WriteString("This individual")
	}
	if p.CurrentCompanyName != "" {
		fmt.Fprintf(&b, " currently works at %s", p.CurrentCompanyName)
		if p.Position != "" {
			fmt.Fprintf(&b, " as %s", p.Position)
		}
		b.WriteString(".")
	}
	if p.City != "" || p.CountryCode != "" {
		fmt.Fprintf(&b, " Based in %s.", locationString(p))
	}
	if p.About != "" {
		about := p.About
		if len(about) > 200 {
			about = about[:200]
		}
		fmt.Fprintf(&b, " %s", about)
	}
	fmt.Fprintf(&b, " Has %s following (%d followers) and %s network (%d connections).",
		magnitudeQualifier(p.Followers), p.Followers, magnitudeQualifier(p.Connections), p.Connections)
	fmt.Fprintf(&b, " Profile lists %d experience entr%s and %d education entr%s.",
		len(p.Experience), pluralSuffix(len(p.Experience), "y", "ies"),
		len(p.Education), pluralSuffix(len(p.Education), "y", "ies"))
	return b.String()
}

func pluralSuffix(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func locationString(p *scraper.Profile) string {
	if p.City != "" && p.CountryCode != "" {
		return fmt.Sprintf("%s, %s", p.City, p.CountryCode)
	}
	if p.City != "" {
		return p.City
	}
	return p.CountryCode
}

func keyRoles(p *scraper.Profile) []string {
	var roles []string
	if p.CurrentCompanyName != "" {
		if p.Position != "" {
			roles = append(roles, fmt.Sprintf("%s at %s", p.Position, p.CurrentCompanyName))
		} else {
			roles = append(roles, p.CurrentCompanyName)
		}
	}
	count := 0
	for _, exp := range p.Experience {
		if count >= 3 {
			break
		}
		if exp.Company == "" || exp.Company == p.CurrentCompanyName {
			continue
		}
		if exp.Title != "" {
			roles = append(roles, fmt.Sprintf("%s at %s", exp.Title, exp.Company))
		} else {
			roles = append(roles, exp.Company)
		}
		count++
	}
	if len(p.Education) > 0 && p.Education[0].Title != "" {
		roles = append(roles, p.Education[0].Title)
	}
	return roles
}

func timeline(p *scraper.Profile) []models.TimelineEntry {
	var entries []models.TimelineEntry
	for i, exp := range p.Experience {
		if i >= 5 {
			break
		}
		date := exp.Duration
		if date == "" {
			date = durationOrYear(exp.StartYear, exp.EndYear)
		}
		entries = append(entries, models.TimelineEntry{
			Date:   date,
			Event:  fmt.Sprintf("%s at %s", exp.Title, exp.Company),
			Source: "LinkedIn Profile",
		})
	}
	for _, edu := range p.Education {
		entries = append(entries, models.TimelineEntry{
			Date:   durationOrYear(edu.StartYear, edu.EndYear),
			Event:  edu.Title,
			Source: "LinkedIn Profile",
		})
	}
	return entries
}

func durationOrYear(start, end string) string {
	if start == "" && end == "" {
		return ""
	}
	if end == "" {
		return start + " - present"
	}
	return start + " - " + end
}

func completenessScore(p *scraper.Profile) float64 {
	score := 0.0
	if p.About != "" {
		score += 0.2
	}
	if len(p.Experience) > 0 {
		score += 0.3
	}
	if len(p.Education) > 0 {
		score += 0.2
	}
	if p.Followers > 0 {
		score += 0.15
	}
	if p.Connections > 0 {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func profileStrength(score float64) string {
	switch {
	case score >= 0.8:
		return "Strong"
	case score >= 0.6:
		return "Good"
	case score >= 0.4:
		return "Moderate"
	default:
		return "Weak"
	}
}

func tractionRating(followers int) string {
	switch {
	case followers >= 10000:
		return "High"
	case followers >= 1000:
		return "Medium"
	default:
		return "Low"
	}
}

func keywordOptimization(p *scraper.Profile, claims []models.Claim) models.KeywordOptimization {
	var identified []string
	seen := map[string]bool{}
	for _, c := range claims {
		if c.Predicate != models.PredicateHasSkill {
			continue
		}
		if !seen[c.Object] {
			identified = append(identified, c.Object)
			seen[c.Object] = true
		}
	}
	score := 0.0
	if len(identified) > 0 {
		score = float64(min(len(identified), 10)) / 10.0
	}
	var missing []string
	if len(identified) == 0 {
		missing = append(missing, "no skills were identified in the harvested evidence")
	}
	return models.KeywordOptimization{
		Score:              score,
		IdentifiedKeywords: identified,
		MissingKeywords:    missing,
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func engagementMetrics(p *scraper.Profile) models.EngagementMetrics {
	rating := tractionRating(p.Followers)
	analysis := fmt.Sprintf("%d followers and %d connections indicate %s audience reach.", p.Followers, p.Connections, strings.ToLower(rating))
	return models.EngagementMetrics{
		Followers:      p.Followers,
		Connections:    p.Connections,
		TractionRating: rating,
		Analysis:       analysis,
	}
}

func profileSections(p *scraper.Profile) models.ProfileSections {
	headline := p.Position
	if headline == "" {
		headline = "No headline present"
	}
	about := "No about section present"
	if p.About != "" {
		about = "About section present"
	}
	experience := "No experience entries present"
	if len(p.Experience) > 0 {
		experience = fmt.Sprintf("%d experience entries present", len(p.Experience))
	}
	educationPresent := len(p.Education) > 0
	educationQuality := "weak"
	educationFeedback := "Consider adding education history to strengthen credibility signals."
	if educationPresent {
		educationQuality = "adequate"
		educationFeedback = "Education history is present."
	}
	return models.ProfileSections{
		Headline:   headline,
		About:      about,
		Experience: experience,
		Education: models.EducationSection{
			Present: educationPresent,
			Count:   len(p.Education),
			Quality: educationQuality,
			Feedback: educationFeedback,
		},
	}
}

func recommendations(p *scraper.Profile) []string {
	recs := make([]string, 0, 5)
	if p.About == "" {
		recs = append(recs, "Add a detailed about section to improve discoverability and context for visitors.")
	} else {
		recs = append(recs, "Keep the about section updated with recent accomplishments.")
	}
	if len(p.Experience) == 0 {
		recs = append(recs, "Add work experience entries to establish professional credibility.")
	} else {
		recs = append(recs, "Continue documenting new roles and responsibilities as they occur.")
	}
	if len(p.Education) == 0 {
		recs = append(recs, "Add education history to round out the profile.")
	} else {
		recs = append(recs, "Education history looks complete; consider adding certifications.")
	}
	if p.Followers < 1000 {
		recs = append(recs, "Invest in visibility-building activities (posting, engagement) to grow the follower base.")
	} else {
		recs = append(recs, "Maintain regular posting cadence to sustain audience engagement.")
	}
	if p.Connections < 500 {
		recs = append(recs, "Grow the professional network by connecting with colleagues and industry peers.")
	} else {
		recs = append(recs, "Network size is healthy; focus on engagement quality over growth.")
	}
	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}
