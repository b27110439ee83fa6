package agent

// State состояние воркера
type State int32

const (
	Starting State = iota
	WaitingForTask
	WaitingForRelease
	Computing
	Terminated
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case WaitingForTask:
		return "waiting_for_task"
	case WaitingForRelease:
		return "waiting_for_release"
	case Computing:
		return "computing"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
