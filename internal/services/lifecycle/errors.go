package lifecycle

// WriteError is returned when a transition could not be persisted
type WriteError struct {
	Transition string
	Err        error
}

func (e *WriteError) Error() string {
	return "Failed to " + e.Transition + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
