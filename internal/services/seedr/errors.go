package seedr

import "fmt"

// ErrorKind classifies why a call produced no result.
type ErrorKind int

const (
	// KindTransport covers DNS, connection, timeout and cancellation failures.
	KindTransport ErrorKind = iota + 1
	// KindStatus is a non-2xx response the requested type cannot represent.
	KindStatus
	// KindDecode is a 2xx response whose body is not the expected JSON.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every ClientAPI method that could not produce a result.
type Error struct {
	Kind       ErrorKind
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("seedr %s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
	default:
		if e.Err == nil {
			return fmt.Sprintf("seedr %s %s: %s error", e.Method, e.Endpoint, e.Kind)
		}
		return fmt.Sprintf("seedr %s %s: %s error: %v", e.Method, e.Endpoint, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
