package tabledb

import "time"

type Outcome struct {
	ID       int64
	EntityID string
	Outcome  string
	Ts       time.Time
}

type ScoreLog struct {
	ID          int64
	Scorer      string
	EntityID    string
	Ts          time.Time
	Value       float64
	Composite   float64
	SampleCount int
	Attributes  []byte
}

type Selection struct {
	ID        int64
	CycleID   string
	Seq       uint64
	Reason    string
	CreatedOn time.Time
	Entities  []string
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
