package canopen

import "errors"

// Creation/start errors (§7 channel 1): surfaced synchronously from
// constructors and lifecycle methods, distinct from the SDO abort codes
// returned by configuration download indications.
var (
	ErrIllegalArgument = errors.New("error in function arguments")
	ErrOutOfMemory     = errors.New("memory allocation failed")
	ErrOdParameters    = errors.New("error in object dictionary parameters")
	ErrInvalidState    = errors.New("operation not valid in the current state")
	ErrTimeout         = errors.New("function timeout")
)
