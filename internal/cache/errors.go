package cache

import "fmt"

// StoreError describes a failed store operation. The Service logs it and
// degrades to a miss.
type StoreError struct {
	Op    string
	Key   string
	Cause error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache store %s %s: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("cache store %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
