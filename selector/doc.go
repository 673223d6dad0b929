// Package selector ranks observed tables and keeps a small rotating
// selection of them for a downstream consumer to act on.
//
// # Scoring
//
// Every entity with at least MinSamples outcomes gets a composite score:
//
//	composite = AlternationWeight * alternation + BalanceWeight * balance
//
// where alternation is the share of adjacent primary outcomes that switch
// sides (scaled by a reliability factor that grows with the sample count)
// and balance measures how close the two primary outcomes are to 50/50.
// Ties are tracked but do not take part in either component.
//
// # Selection cycles
//
// The top MaxSelected fresh entities form a SelectionCycle. A cycle is
// immutable; it is replaced wholesale when the trigger fires:
//   - fixed-cycle-count: after CycleRounds observations across all entities
//   - selection-exhausted: once every selected entity has been acted on
//
// Independently of the trigger, the periodic Tick replaces a cycle that
// holds an entity that went stale, and retries while the selection is
// empty. An empty selection is a normal state meaning "wait".
//
// # Choosing a side
//
// Choose draws one of the two primary outcomes with equal probability from
// crypto/rand. Scores decide which entities to act on, never which side.
//
// # Usage
//
//	tbl := entity.NewTable(0)
//	sl, err := selector.New(selector.DefaultConfig(), tbl, log, nil)
//	if err != nil {
//	    return err
//	}
//	sl.Observe("T1", entity.OutcomeA)
//	go sl.Run(ctx, 10*time.Second)
package selector
