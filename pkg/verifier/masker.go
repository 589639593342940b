package verifier

import "strings"

// Masker redacts a sensitive object value. The interface and its fail-closed
// posture mirror the teacher's pkg/masking.Masker: a concrete masker per
// sensitive category, registered into a lookup map at construction.
type Masker interface {
	Name() string
	AppliesTo(predicate string) bool
	Mask(value string) string
}

// EmailMasker masks the local part of an email to its first character.
type EmailMasker struct{}

func (EmailMasker) Name() string                  { return "email" }
func (EmailMasker) AppliesTo(predicate string) bool { return predicate == "has_email" }

func (EmailMasker) Mask(value string) string {
	at := strings.IndexByte(value, '@')
	if at <= 0 {
		return "[REDACTED: masking failure]"
	}
	local, domain := value[:at], value[at:]
	return local[:1] + "***" + domain
}

// PhoneMasker masks a phone number's middle digits, keeping a country code
// prefix and a readable trailing format.
type PhoneMasker struct{}

func (PhoneMasker) Name() string                  { return "phone" }
func (PhoneMasker) AppliesTo(predicate string) bool { return predicate == "has_phone" }

func (PhoneMasker) Mask(value string) string {
	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		}
	}
	if len(digits) < 7 {
		return "[REDACTED: masking failure]"
	}
	country := digits[:len(digits)-10]
	if len(country) == 0 {
		country = []byte("1")
	}
	rest := digits[len(digits)-10:]
	return "+" + string(country) + "-" + string(rest[:3]) + "-***-****"
}

// GenericPIIMasker redacts any other sensitive value wholesale.
type GenericPIIMasker struct{}

func (GenericPIIMasker) Name() string                  { return "generic_pii" }
func (GenericPIIMasker) AppliesTo(predicate string) bool { return true }
func (GenericPIIMasker) Mask(string) string            { return "[REDACTED]" }

// maskerFor returns the most specific registered masker for a predicate,
// falling back to GenericPIIMasker. Fail-closed: if no masker applies,
// the caller must still redact via GenericPIIMasker rather than leak the
// value, mirroring the teacher's fail-closed masking posture.
func maskerFor(registry map[string]Masker, predicate string) Masker {
	for _, name := range []string{"email", "phone"} {
		if m, ok := registry[name]; ok && m.AppliesTo(predicate) {
			return m
		}
	}
	return registry["generic_pii"]
}

func defaultMaskerRegistry() map[string]Masker {
	return map[string]Masker{
		"email":       EmailMasker{},
		"phone":       PhoneMasker{},
		"generic_pii": GenericPIIMasker{},
	}
}
