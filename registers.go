package gripgate

import "math"

// Register map of the SCHUNK EGH-80-IOL-N behind a TURCK FEN20-4IOL
// IO-Link master. The master maps the gripper's 8 byte process data
// output to four consecutive holding registers starting at RegCommand
// and its process data input to the input registers below. Addresses
// and command codes are taken from the vendor datasheets.
const (
	RegCommand        uint16 = 0x0801 // process data out, word 0: command
	RegForce          uint16 = 0x0802 // process data out, word 1: gripping force
	RegTargetPosition uint16 = 0x0803 // process data out, words 2-3: target position (float32, big endian)

	RegStatusWord     uint16 = 0x0001 // process data in, word 0: status word
	RegActualPosition uint16 = 0x0003 // process data in, words 2-3: actual position (float32, big endian)

	RegIdleTimeout uint16 = 0x1120 // parameter: seconds of inactivity before the master drops the connection, 0 = never
)

// Command codes for the high byte of RegCommand. Setting BitExecute
// makes the firmware execute the pending command.
const (
	CmdFastStop      uint16 = 0x0000
	CmdAcknowledge   uint16 = 0x0100
	CmdReference     uint16 = 0x0200
	CmdRelease       uint16 = 0x0300
	CmdGrip          uint16 = 0x0400
	CmdMovePosition  uint16 = 0x0500
	CmdMeasureStroke uint16 = 0x0700
	CmdStop          uint16 = 0x0800
	CmdCalibrate     uint16 = 0x0900

	BitExecute uint16 = 0x8000
)

const (
	ForceMin = 1 // weakest gripping force
	ForceMax = 4 // strongest gripping force

	PositionMin = 0   // fingers fully closed
	PositionMax = 100 // fingers fully opened

	// MaxStrokeMM is the maximum position amplitude of the fingers in mm.
	MaxStrokeMM = 40.683074951171875
)

// ForceCode maps a force level in [ForceMin,ForceMax] to the value of
// the gripping force register. The device counts the other way round:
// 0 is the strongest level.
func ForceCode(force int) uint16 {
	return uint16(ForceMax-force) << 8
}

// PositionWords converts a relative finger position in percent into
// the two register words of the target position: the distance to the
// fully opened position in mm as a big endian float32.
func PositionWords(percent int) [2]uint16 {
	mm := float64(PositionMax-percent) / 100 * MaxStrokeMM
	bits := math.Float32bits(float32(mm))
	return [2]uint16{uint16(bits >> 16), uint16(bits)}
}

// PositionPercent is the inverse of PositionWords for the actual
// position input registers.
func PositionPercent(words [2]uint16) int {
	bits := uint32(words[0])<<16 | uint32(words[1])
	mm := float64(math.Float32frombits(bits))
	return int((MaxStrokeMM - mm) / MaxStrokeMM * 100)
}
