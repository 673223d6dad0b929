// Package entity holds the observed tables and their outcome histories.
//
// The Table is owned by the observation layer. Everything derived from it
// (scores, selections) can be thrown away and recomputed at any time.
package entity

import (
	"slices"
	"time"
)

// Outcome is a single observed result symbol. The table stores unknown
// symbols verbatim; only the scorers care about the alphabet.
type Outcome string

const (
	OutcomeA   Outcome = "A"
	OutcomeB   Outcome = "B"
	OutcomeTie Outcome = "T"
)

// Alphabet names the two primary symbols and the tie symbol.
type Alphabet struct {
	Primary [2]Outcome `json:"primary"`
	Tie     Outcome    `json:"tie"`
}

// DefaultAlphabet is {A, B, T}.
var DefaultAlphabet = Alphabet{
	Primary: [2]Outcome{OutcomeA, OutcomeB},
	Tie:     OutcomeTie,
}

// PrimaryIndex returns 0 or 1 for the primary symbols and -1 for anything
// else, ties included.
func (a Alphabet) PrimaryIndex(o Outcome) int {
	switch o {
	case a.Primary[0]:
		return 0
	case a.Primary[1]:
		return 1
	}
	return -1
}

// IsTie reports whether o is the tie symbol.
func (a Alphabet) IsTie(o Outcome) bool {
	return a.Tie != "" && o == a.Tie
}

// Entity is one observed table.
type Entity struct {
	ID        string
	Outcomes  []Outcome
	FirstSeen time.Time
	LastSeen  time.Time
	Active    bool

	// InactiveSince is set when the entity was expired.
	InactiveSince time.Time
}

// Count is the number of recorded outcomes, ties included.
func (e Entity) Count() int {
	return len(e.Outcomes)
}

// IsStale reports whether the entity has gone without an update for longer
// than window. A zero window never goes stale.
func (e Entity) IsStale(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(e.LastSeen) > window
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	e.Outcomes = slices.Clone(e.Outcomes)
	return e
}
