package registry

// BenignError tags a failure that is expected during normal operation.
// It still aborts processing of its queue item, but the worker does not
// log it at error level.
type BenignError struct {
	Err error
}

func (e *BenignError) Error() string {
	return e.Err.Error()
}

func (e *BenignError) Unwrap() error {
	return e.Err
}

// Benign wraps an error with the benign tag
func Benign(err error) error {
	if err == nil {
		return nil
	}
	return &BenignError{Err: err}
}
