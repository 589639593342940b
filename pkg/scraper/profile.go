package scraper

import "encoding/json"

// Experience is one entry in Profile.Experience.
type Experience struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	Duration  string `json:"duration"`
	StartYear string `json:"start_year"`
	EndYear   string `json:"end_year"`
}

// Education is one entry in Profile.Education.
type Education struct {
	Title     string `json:"title"`
	StartYear string `json:"start_year"`
	EndYear   string `json:"end_year"`
}

// Profile is the canonical profile payload shape consumed by the extractor
// and synthesizer (§6). Unknown fields are retained in the originating
// Record/Evidence but not modeled here.
type Profile struct {
	LinkedInID        string       `json:"linkedin_id"`
	Name              string       `json:"name"`
	CountryCode       string       `json:"country_code"`
	City              string       `json:"city"`
	Position          string       `json:"position"`
	CurrentCompanyName string      `json:"current_company_name"`
	About             string       `json:"about"`
	Experience        []Experience `json:"experience"`
	Education         []Education  `json:"education"`
	Followers         int          `json:"followers"`
	Connections       int          `json:"connections"`
	URL               string       `json:"url"`
	InputURL          string       `json:"input_url"`
	Timestamp         string       `json:"timestamp"`
	Avatar            string       `json:"avatar"`
	HonorsAndAwards   []string     `json:"honors_and_awards"`
}

// DecodeProfile accepts either a bare profile object or a single-element
// array wrapping one, per §4.1(5). Returns an error if neither shape
// matches.
func DecodeProfile(raw any) (*Profile, error) {
	obj := raw
	if arr, ok := raw.([]any); ok {
		if len(arr) == 0 {
			return nil, errEmptyProfileArray
		}
		obj = arr[0]
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeProfileList accepts a JSON array of profile-shaped objects (the
// shape SearchProfiles and multi-result scrapes return).
func DecodeProfileList(raw any) ([]Profile, error) {
	arr, ok := raw.([]any)
	if !ok {
		// A bare single object is treated as a one-element list.
		p, err := DecodeProfile(raw)
		if err != nil {
			return nil, err
		}
		return []Profile{*p}, nil
	}

	out := make([]Profile, 0, len(arr))
	for _, item := range arr {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		var p Profile
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type profileDecodeError string

func (e profileDecodeError) Error() string { return string(e) }

const errEmptyProfileArray = profileDecodeError("profile array was empty")
