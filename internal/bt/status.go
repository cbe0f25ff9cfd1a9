package bt

import "fmt"

// Status is the result of ticking a node.
type Status int

const (
	// Idle is the state of a node that has not been ticked since it was last
	// halted or completed. A Tick never returns Idle.
	Idle Status = iota
	// Running indicates unfinished work; the node must be ticked again.
	Running
	// Success is a terminal status.
	Success
	// Failure is a terminal status.
	Failure
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsTerminal reports whether s is Success or Failure.
func (s Status) IsTerminal() bool {
	return s == Success || s == Failure
}

// ParseStatus converts a case-sensitive lowercase or uppercase status name,
// as used by scripts and declarative descriptions.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "running", "RUNNING":
		return Running, nil
	case "success", "SUCCESS":
		return Success, nil
	case "failure", "FAILURE":
		return Failure, nil
	case "idle", "IDLE":
		return Idle, nil
	default:
		return Idle, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}
