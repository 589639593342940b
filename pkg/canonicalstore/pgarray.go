package canonicalstore

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// pgTextArray scans/encodes a PostgreSQL TEXT[] column as a []string. The
// policy tags and provenance tags this backs (e.g. "verified:high",
// "consent:profile") never themselves contain commas, braces, or quotes, so
// a minimal literal encoder/decoder is sufficient here — this deliberately
// does not handle the general array-literal escaping rules.
type pgTextArray []string

func (a *pgTextArray) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("pgTextArray: unsupported scan type %T", src)
	}

	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		*a = nil
		return nil
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		*a = pgTextArray{}
		return nil
	}
	parts := strings.Split(inner, ",")
	out := make(pgTextArray, len(parts))
	for i, p := range parts {
		out[i] = strings.Trim(p, `"`)
	}
	*a = out
	return nil
}

func (a pgTextArray) Value() (driver.Value, error) {
	return toTextArray([]string(a)), nil
}

func toTextArray(tags []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, t := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(t, `"`, `\"`))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}
