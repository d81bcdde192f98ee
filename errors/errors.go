package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrDuplicateKey       = fmt.Errorf("message already stored")
	ErrInvalidMessage     = fmt.Errorf("invalid message")
	ErrTransportFailure   = fmt.Errorf("transport failure")
	ErrApplicationFailure = fmt.Errorf("application failure")
	ErrInvalidSchedule    = fmt.Errorf("invalid schedule")
	ErrClosed             = fmt.Errorf("component closed")
	ErrMalformedRecord    = fmt.Errorf("malformed stored record")
)
