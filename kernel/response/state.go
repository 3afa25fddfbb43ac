package response

// State 构造响应的阶段
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateExecuting
	StateSucceeded
	StateExceptioned
	StateFailed
	// StateRejected 没有响应
	StateRejected
)

var stateNames = map[State]string{
	StateCreated:     "created",
	StateInitialized: "initialized",
	StateExecuting:   "executing",
	StateSucceeded:   "succeeded",
	StateExceptioned: "exceptioned",
	StateFailed:      "failed",
	StateRejected:    "rejected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
