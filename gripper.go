package gripgate

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rwirdemann/gripgate/modbus"
)

const (
	DefaultPort    = 502
	DefaultTimeout = 1 * time.Second
)

// Port is the register level Modbus connection the gripper issues its
// transactions on. Each method is one Modbus transaction.
type Port interface {
	WriteRegister(addr, value uint16) error
	WriteRegisters(addr uint16, values []uint16) error
	ReadInputRegister(addr uint16) (uint16, error)
	ReadInputRegisters(addr, quantity uint16) ([]uint16, error)
	Close() error
}

// Gripper controls a SCHUNK EGH-80-IOL-N attached to a TURCK
// FEN20-4IOL IO-Link master over Modbus TCP. It owns a single
// connection for its lifetime and holds no other state between calls;
// concurrent calls must be serialized by the caller.
type Gripper struct {
	port Port
}

// NewGripper connects to the IO-Link master at host. Host is an IPv4
// address, optionally with a port; without one the default Modbus TCP
// port is used.
func NewGripper(host string) (*Gripper, error) {
	return NewGripperWithTimeout(host, DefaultTimeout)
}

// NewGripperWithTimeout is NewGripper with an explicit transaction and
// dial timeout.
func NewGripperWithTimeout(host string, timeout time.Duration) (*Gripper, error) {
	ip, _, err := net.SplitHostPort(host)
	if err != nil {
		ip = host
		host = net.JoinHostPort(host, strconv.Itoa(DefaultPort))
	}
	if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidArgument, ip)
	}

	port, err := modbus.NewAdapter("tcp://"+host, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return NewGripperFromPort(port), nil
}

// NewGripperFromPort wraps an already opened port. Used by tests and
// callers that manage the connection themselves.
func NewGripperFromPort(port Port) *Gripper {
	return &Gripper{port: port}
}

// Grip closes the fingers onto the workpiece with the given force
// level, 1 (weakest) to 4 (strongest). The force register is written
// first, then the grip command is triggered. The call returns once the
// writes are acknowledged; it does not wait for the motion to finish.
func (g *Gripper) Grip(force int) error {
	if force < ForceMin || force > ForceMax {
		return fmt.Errorf("%w: force %d not in [%d,%d]", ErrInvalidArgument, force, ForceMin, ForceMax)
	}
	if err := g.port.WriteRegister(RegForce, ForceCode(force)); err != nil {
		return fmt.Errorf("grip: write force register: %w: %w", ErrCommunication, err)
	}
	if err := g.port.WriteRegister(RegCommand, CmdGrip|BitExecute); err != nil {
		return fmt.Errorf("grip: trigger command: %w: %w", ErrCommunication, err)
	}
	return nil
}

// Release opens the fingers up to the end stop, moving with the
// weakest force adjustment.
func (g *Gripper) Release() error {
	if err := g.port.WriteRegister(RegCommand, CmdRelease|BitExecute); err != nil {
		return fmt.Errorf("release: %w: %w", ErrCommunication, err)
	}
	return nil
}

// SetPosition moves the fingers to a relative position in percent,
// 0 (closed) to 100 (opened). Command word and target position are
// carried in a single write transaction across the process data
// registers.
func (g *Gripper) SetPosition(percent int) error {
	if percent < PositionMin || percent > PositionMax {
		return fmt.Errorf("%w: position %d not in [%d,%d]", ErrInvalidArgument, percent, PositionMin, PositionMax)
	}
	words := PositionWords(percent)
	if err := g.port.WriteRegisters(RegCommand, []uint16{CmdMovePosition | BitExecute, 0, words[0], words[1]}); err != nil {
		return fmt.Errorf("set position: %w: %w", ErrCommunication, err)
	}
	return nil
}

// Stop brings the gripper to a controlled standstill. The force of the
// previous command is retained.
func (g *Gripper) Stop() error {
	if err := g.port.WriteRegister(RegCommand, CmdStop|BitExecute); err != nil {
		return fmt.Errorf("stop: %w: %w", ErrCommunication, err)
	}
	return nil
}

// FastStop cuts the actuator power immediately and stops the gripper
// uncontrolled. The firmware latches an error that must be
// acknowledged before the next command.
func (g *Gripper) FastStop() error {
	if err := g.port.WriteRegister(RegCommand, CmdFastStop); err != nil {
		return fmt.Errorf("fast stop: %w: %w", ErrCommunication, err)
	}
	return nil
}

// Acknowledge clears a latched error and returns the gripper to the
// normal operating status. The actuator stays de-energized until the
// next command.
func (g *Gripper) Acknowledge() error {
	return g.command("acknowledge", CmdAcknowledge)
}

// Reference sets the zero position by moving to the mechanical end
// stop in the configured referencing direction.
func (g *Gripper) Reference() error {
	return g.command("reference", CmdReference)
}

// MeasureStroke determines the maximum stroke relative to the
// referencing position.
func (g *Gripper) MeasureStroke() error {
	return g.command("measure stroke", CmdMeasureStroke)
}

// Calibrate runs referencing and stroke measurement one after the
// other.
func (g *Gripper) Calibrate() error {
	return g.command("calibrate", CmdCalibrate)
}

// command issues the execute bit toggle the firmware expects for the
// maintenance commands: the bare code first, then the code with the
// execute bit set.
func (g *Gripper) command(name string, code uint16) error {
	if err := g.port.WriteRegister(RegCommand, code); err != nil {
		return fmt.Errorf("%s: %w: %w", name, ErrCommunication, err)
	}
	if err := g.port.WriteRegister(RegCommand, code|BitExecute); err != nil {
		return fmt.Errorf("%s: %w: %w", name, ErrCommunication, err)
	}
	return nil
}

// SetIdleTimeout defines after how many seconds of inactivity the
// master closes the Modbus connection. 0 keeps it open forever.
func (g *Gripper) SetIdleTimeout(seconds uint16) error {
	if err := g.port.WriteRegister(RegIdleTimeout, seconds); err != nil {
		return fmt.Errorf("set idle timeout: %w: %w", ErrCommunication, err)
	}
	return nil
}

// Status reads the operating status of the gripper.
func (g *Gripper) Status() (Status, error) {
	word, err := g.port.ReadInputRegister(RegStatusWord)
	if err != nil {
		return StatusError, fmt.Errorf("status: %w: %w", ErrCommunication, err)
	}
	return DecodeStatus(word), nil
}

// Success reads the success bit of the status word. Callers that want
// to wait for the end of a motion poll this themselves; the controller
// never does.
func (g *Gripper) Success() (bool, error) {
	word, err := g.port.ReadInputRegister(RegStatusWord)
	if err != nil {
		return false, fmt.Errorf("success: %w: %w", ErrCommunication, err)
	}
	return SuccessBit(word), nil
}

// Position reads the relative finger position in percent.
func (g *Gripper) Position() (int, error) {
	words, err := g.port.ReadInputRegisters(RegActualPosition, 2)
	if err != nil {
		return 0, fmt.Errorf("position: %w: %w", ErrCommunication, err)
	}
	if len(words) != 2 {
		return 0, fmt.Errorf("position: %w: expected 2 registers, got %d", ErrCommunication, len(words))
	}
	return PositionPercent([2]uint16{words[0], words[1]}), nil
}

// Close releases the Modbus TCP session.
func (g *Gripper) Close() error {
	return g.port.Close()
}
