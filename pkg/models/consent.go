package models

// ConsentFlags is the data-driven consent model the verifier consults. Keyed
// by a small enum of sensitivity categories so a new one can be added
// without touching the pipeline. Default for web-scraped, no-user-session
// runs is {Profile: true, Email: false}.
type ConsentFlags struct {
	Profile bool
	Email   bool
	Phone   bool
	Address bool
}

// DefaultConsentFlags returns the default consent model for a web-scraped,
// no-user-session run.
func DefaultConsentFlags() ConsentFlags {
	return ConsentFlags{Profile: true, Email: false, Phone: false, Address: false}
}
