package selector

import (
	"fmt"
	"io"
)

// Choose picks one of the two primary outcomes for id with a uniform,
// independent draw. It does not look at any scores. An id outside the
// current selection gets an Action with Selected false; that is not an
// error since the caller may race a reselection. The error is only set
// when the random source fails.
func (s *Selector) Choose(id string) (Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := Action{
		EntityID: id,
		CycleSeq: s.cycle.Seq,
	}

	if !s.cycle.Contains(id) {
		s.metrics.chose("not_selected")
		return a, nil
	}

	var b [1]byte
	if _, err := io.ReadFull(s.rand, b[:]); err != nil {
		return Action{}, fmt.Errorf("reading random source: %w", err)
	}

	a.Selected = true
	a.Side = s.cfg.Alphabet.Primary[b[0]&1]
	s.metrics.chose(string(a.Side))

	return a, nil
}
