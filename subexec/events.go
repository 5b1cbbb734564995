package subexec

// Observer receives lifecycle notifications for an invocation.
type Observer interface {
	// ProcessStarted is called once the child is running.
	ProcessStarted(command string, pid int)
	// ProcessCompleted is called with the final result, including timeout kills.
	ProcessCompleted(command string, result Result)
	// ProcessFailed reports spawn and stream failures; no result exists for them.
	ProcessFailed(command string, err error)
}

type noopObserver struct{}

func (noopObserver) ProcessStarted(string, int)      {}
func (noopObserver) ProcessCompleted(string, Result) {}
func (noopObserver) ProcessFailed(string, error)     {}
