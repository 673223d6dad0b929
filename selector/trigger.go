package selector

//go:generate go tool github.com/dmarkham/enumer -type=Trigger -text -trimprefix=Trigger -transform=kebab

// Trigger decides when a selection cycle is replaced
type Trigger uint8

const (
	TriggerUnknown Trigger = iota
	TriggerFixedCycleCount
	TriggerSelectionExhausted
)
