package gripgate

// Status is the operating status of the gripper as reported in bits
// 8-10 of the status word.
type Status uint8

const (
	StatusError       Status = 0
	StatusOutOfSpec   Status = 1
	StatusMaintenance Status = 2
	StatusReady       Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusOutOfSpec:
		return "out of specification"
	case StatusMaintenance:
		return "maintenance required"
	case StatusReady:
		return "ready"
	}
	return "unknown"
}

// DecodeStatus extracts the operating status from the status word.
func DecodeStatus(word uint16) Status {
	return Status((word >> 8) & 0x07)
}

// SuccessBit reports whether the success bit of the status word is
// set. The firmware clears it when a new command starts executing and
// sets it once the command has completed.
func SuccessBit(word uint16) bool {
	return word&(1<<14) != 0
}

// ProcessedBit reports whether the firmware has taken over the pending
// process data, i.e. the execute bit has been mirrored back.
func ProcessedBit(word uint16) bool {
	return word&(1<<15) != 0
}
