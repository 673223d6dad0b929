package selector

import (
	"slices"
	"time"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/score"
)

// reselection reasons
const (
	reasonStartup   = "startup"
	reasonRounds    = "rounds"
	reasonExhausted = "exhausted"
	reasonStale     = "stale"
	reasonEmpty     = "empty"
	reasonConfig    = "config"
	reasonManual    = "manual"
)

// SelectionCycle is the current bounded set of entities to act on. It is
// created whole by a reselection and never modified afterwards.
type SelectionCycle struct {
	ID  string `json:"id,omitempty"`
	Seq uint64 `json:"seq"`

	// Entities is in rank order, best first.
	Entities []string      `json:"entities"`
	Scores   []score.Score `json:"scores"`

	Trigger Trigger `json:"trigger"`

	// Rounds is the cycle length in observations with the
	// fixed-cycle-count trigger.
	Rounds int `json:"rounds,omitempty"`

	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (c SelectionCycle) Empty() bool {
	return len(c.Entities) == 0
}

func (c SelectionCycle) Contains(id string) bool {
	return slices.Contains(c.Entities, id)
}

func (c SelectionCycle) clone() SelectionCycle {
	c.Entities = slices.Clone(c.Entities)
	c.Scores = slices.Clone(c.Scores)
	return c
}

// Action is the answer to Choose. Side is empty when the entity isn't in
// the current selection.
type Action struct {
	EntityID string         `json:"entity_id"`
	Selected bool           `json:"selected"`
	Side     entity.Outcome `json:"side,omitempty"`
	CycleSeq uint64         `json:"cycle_seq"`
}
