package session

import "fmt"

// CustomerLookupError the external customer lookup failed. The draft is
// guaranteed untouched: no partial merge ever happens.
type CustomerLookupError struct {
	CustomerID string
	Err        error
}

func (e *CustomerLookupError) Error() string {
	return fmt.Sprintf("session: customer lookup %s: %v", e.CustomerID, e.Err)
}

func (e *CustomerLookupError) Unwrap() error { return e.Err }
