package profile

import "strings"

// Symbols is the data-driven mapping between raw site vocabulary, the closed
// enum types, and the display markers used when rendering a profile for a
// human. It is injected into the Normalizer so the site's wording (or the
// operator's taste in markers) can change without touching any logic.
type Symbols struct {
	// Raw-value vocabularies, matched case-insensitively after trimming.
	GenderWords  map[string]Gender
	MaritalWords map[string]Marital
	StatusWords  map[string]Verification

	// Display markers, keyed by the enum's String() form.
	GenderMarks  map[string]string
	MaritalMarks map[string]string
	StatusMarks  map[string]string
	FriendMarks  map[bool]string
}

// DefaultSymbols returns the symbol table matching the source site's
// vocabulary and the marker set used in run summaries.
func DefaultSymbols() Symbols {
	return Symbols{
		GenderWords: map[string]Gender{
			"male": GenderMale, "m": GenderMale, "boy": GenderMale,
			"female": GenderFemale, "f": GenderFemale, "girl": GenderFemale,
		},
		MaritalWords: map[string]Marital{
			"single": MaritalSingle, "no": MaritalSingle,
			"married": MaritalMarried, "yes": MaritalMarried,
		},
		StatusWords: map[string]Verification{
			"verified": Verified, "approved": Verified,
			"unverified": Unverified, "not verified": Unverified,
		},
		GenderMarks: map[string]string{
			"male": "♂", "female": "♀", "unknown": "?",
		},
		MaritalMarks: map[string]string{
			"single": "○", "married": "●", "unknown": "?",
		},
		StatusMarks: map[string]string{
			"verified": "✅", "unverified": "❌", "unknown": "?",
		},
		FriendMarks: map[bool]string{true: "💚", false: ""},
	}
}

// ParseGender maps a raw scraped value to a Gender. Unknown values map to
// GenderUnknown, never an error.
func (s Symbols) ParseGender(raw string) Gender {
	return s.GenderWords[normWord(raw)]
}

// ParseMarital maps a raw scraped value to a Marital.
func (s Symbols) ParseMarital(raw string) Marital {
	return s.MaritalWords[normWord(raw)]
}

// ParseStatus maps a raw scraped value to a Verification.
func (s Symbols) ParseStatus(raw string) Verification {
	return s.StatusWords[normWord(raw)]
}

// Mark renders a profile's enum fields as display markers for human output.
func (s Symbols) Mark(p *Profile) (gender, married, status, friend string) {
	return s.GenderMarks[p.Gender.String()],
		s.MaritalMarks[p.Married.String()],
		s.StatusMarks[p.Verified.String()],
		s.FriendMarks[p.Friend]
}

func normWord(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
