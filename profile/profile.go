// Package profile defines the canonical user-profile record and the
// normalizer that turns loosely-typed scraped values into one.
//
// A Profile is keyed by its case-normalized nickname. Every field except
// ScrapedAt participates in change detection; ScrapedAt is bookkeeping and
// advances on every sighting without counting as a change.
package profile

import (
	"strconv"
	"strings"
	"time"
)

// Gender is the profile gender field.
type Gender int8

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

// GenderFromString is the inverse of Gender.String, for loading stored rows.
func GenderFromString(s string) Gender {
	switch s {
	case "male":
		return GenderMale
	case "female":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Marital is the marital-status field.
type Marital int8

const (
	MaritalUnknown Marital = iota
	MaritalSingle
	MaritalMarried
)

func (m Marital) String() string {
	switch m {
	case MaritalSingle:
		return "single"
	case MaritalMarried:
		return "married"
	default:
		return "unknown"
	}
}

// MaritalFromString is the inverse of Marital.String.
func MaritalFromString(s string) Marital {
	switch s {
	case "single":
		return MaritalSingle
	case "married":
		return MaritalMarried
	default:
		return MaritalUnknown
	}
}

// Verification is the account verification field.
type Verification int8

const (
	VerificationUnknown Verification = iota
	Verified
	Unverified
)

func (v Verification) String() string {
	switch v {
	case Verified:
		return "verified"
	case Unverified:
		return "unverified"
	default:
		return "unknown"
	}
}

// VerificationFromString is the inverse of Verification.String.
func VerificationFromString(s string) Verification {
	switch s {
	case "verified":
		return Verified
	case "unverified":
		return Unverified
	default:
		return VerificationUnknown
	}
}

// Profile is the canonical record for one user.
type Profile struct {
	Nick         string // identity key, case-normalized
	ImageURL     string
	Tags         string
	LastPost     string // URL of the most recent post
	LastPostTime string // canonical timestamp string, empty if unknown
	Friend       bool
	City         string
	Gender       Gender
	Married      Marital
	Age          int // 0 = unknown
	Joined       string // canonical date string, empty if unknown
	Followers    int
	Verified     Verification
	Posts        int
	ProfileURL   string
	Intro        string
	Source       string // feed that produced this sighting
	ScrapedAt    time.Time
}

// Key returns the canonical identity key for a raw nickname.
func Key(nick string) string {
	return strings.ToLower(strings.TrimSpace(nick))
}

// Field is one named, comparable profile value rendered as a string.
type Field struct {
	Name  string
	Value string
}

// Fields returns every comparable field in stable order. ScrapedAt is
// excluded: it advances on every sighting and must never trigger a change.
// Nick is excluded because records are compared only within one identity.
func (p *Profile) Fields() []Field {
	return []Field{
		{"image", p.ImageURL},
		{"tags", p.Tags},
		{"last post", p.LastPost},
		{"last post time", p.LastPostTime},
		{"friend", boolStr(p.Friend)},
		{"city", p.City},
		{"gender", p.Gender.String()},
		{"married", p.Married.String()},
		{"age", intStr(p.Age)},
		{"joined", p.Joined},
		{"followers", intStr(p.Followers)},
		{"status", p.Verified.String()},
		{"posts", intStr(p.Posts)},
		{"profile link", p.ProfileURL},
		{"intro", p.Intro},
		{"source", p.Source},
	}
}

func boolStr(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func intStr(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
