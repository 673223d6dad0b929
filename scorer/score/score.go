package score

import "time"

// Score is the derived, read-only view of one entity. It is recomputed on
// every ranking pass and never stored on its own.
type Score struct {
	EntityID string    `json:"entity_id"`
	Ts       time.Time `json:"ts"`

	Count   int    `json:"count"`
	Primary [2]int `json:"primary"`
	Ties    int    `json:"ties"`
	Other   int    `json:"other,omitempty"`

	// Pairs is the number of adjacent primary pairs considered for
	// alternation.
	Pairs          int     `json:"pairs"`
	AlternationRaw float64 `json:"alternation_raw"`
	Reliability    float64 `json:"reliability"`
	Alternation    float64 `json:"alternation"`
	Balance        float64 `json:"balance"`
	Composite      float64 `json:"composite"`

	// Eligible is false when the entity has fewer than the minimum number
	// of samples; Composite is 0 in that case.
	Eligible bool `json:"eligible"`

	// Value is the headline number of the scorer that produced this score.
	Value float64 `json:"value"`
}

// TieRate is the share of ties among all outcomes.
func (s Score) TieRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Ties) / float64(s.Count)
}
