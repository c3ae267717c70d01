package gripgate

type Error string

// Error implements the error interface.
func (e Error) Error() (s string) {
	s = string(e)
	return
}

const (
	// ErrInvalidArgument is returned before any register write when a
	// force level or target position is outside its legal range.
	ErrInvalidArgument Error = "invalid argument"

	// ErrConnection is returned when the Modbus TCP session to the
	// IO-Link master cannot be established.
	ErrConnection Error = "connection failed"

	// ErrCommunication is returned when a register transaction fails
	// after the session has been established.
	ErrCommunication Error = "communication failed"
)
