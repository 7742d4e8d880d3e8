package orchestrator

// State is a node of the per-question state machine
type State int

const (
	StateClassify State = iota
	StateMemoryAnswer
	StateRetrievePath
	StateGeneralPath
	StateGenerate
	StateSelfCheck
	StateFinalize
	StateDone
)

var stateNames = map[State]string{
	StateClassify:     "classify",
	StateMemoryAnswer: "memory_answer",
	StateRetrievePath: "retrieve_path",
	StateGeneralPath:  "general_path",
	StateGenerate:     "generate",
	StateSelfCheck:    "self_check",
	StateFinalize:     "finalize",
	StateDone:         "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions lists the successors each state may hand over to
var transitions = map[State][]State{
	StateClassify:     {StateMemoryAnswer, StateRetrievePath, StateGeneralPath, StateFinalize},
	StateMemoryAnswer: {StateGenerate, StateFinalize},
	StateRetrievePath: {StateGenerate, StateGeneralPath, StateFinalize},
	StateGeneralPath:  {StateGenerate, StateFinalize},
	StateGenerate:     {StateSelfCheck, StateFinalize},
	StateSelfCheck:    {StateGenerate, StateFinalize},
	StateFinalize:     {StateDone},
}

// CanTransition reports whether to is a legal successor of from
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
