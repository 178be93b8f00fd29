// Package reconcile decides how a freshly scraped profile merges into the
// canonical store: as a new record, an update, or no change at all.
//
// Reconcile is pure. The caller does the store lookup and the write; this
// package only compares normalized records and describes the difference.
// In particular a failed lookup must never be turned into a New decision by
// the caller, since that would silently overwrite the record's history.
package reconcile

import (
	"fmt"
	"strings"

	"profilewatch/profile"
)

// Decision is the upsert outcome for one incoming record.
type Decision int

const (
	// New means no record exists for the identity key yet.
	New Decision = iota
	// Updated means at least one comparable field differs; the stored
	// record's fields are replaced wholesale by the incoming values.
	Updated
	// Unchanged means every comparable field is equal; only the
	// last-scraped timestamp advances.
	Unchanged
)

func (d Decision) String() string {
	switch d {
	case New:
		return "new"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// FirstSeenNote is the annotation attached to a record on first sighting.
const FirstSeenNote = "first seen"

// Reconcile compares an incoming normalized profile against the existing
// record (nil if absent) and returns the decision plus a human-readable
// annotation. For Updated the annotation names each changed field as
// "field: old → new"; for Unchanged it is empty.
func Reconcile(existing *profile.Profile, incoming *profile.Profile) (Decision, string) {
	if existing == nil {
		return New, FirstSeenNote
	}

	changes := Diff(existing, incoming)
	if len(changes) == 0 {
		return Unchanged, ""
	}
	return Updated, strings.Join(changes, "; ")
}

// Diff returns one "field: old → new" entry per comparable field that
// differs, in the profile's stable field order. Comparison happens on
// normalized values, so cosmetic differences never show up here.
func Diff(existing, incoming *profile.Profile) []string {
	old := existing.Fields()
	cur := incoming.Fields()

	var changes []string
	for i, f := range cur {
		if old[i].Value == f.Value {
			continue
		}
		changes = append(changes, fmt.Sprintf("%s: %s → %s", f.Name, old[i].Value, f.Value))
	}
	return changes
}
