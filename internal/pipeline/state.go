package pipeline

// State is a step of the query state machine.
type State string

const (
	StateReceived       State = "received"
	StateClassified     State = "classified"
	StateContextFetched State = "context_fetched"
	StateOptimized      State = "optimized"
	StateSerialized     State = "serialized"
	StateGenerated      State = "generated"
	StatePersisted      State = "persisted"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

var transitions = map[State]State{
	StateReceived:       StateClassified,
	StateClassified:     StateContextFetched,
	StateContextFetched: StateOptimized,
	StateOptimized:      StateSerialized,
	StateSerialized:     StateGenerated,
	StateGenerated:      StatePersisted,
	StatePersisted:      StateCompleted,
}

// Next returns the successor of s on success. Terminal states have none.
func (s State) Next() (State, bool) {
	n, ok := transitions[s]
	return n, ok
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
