package gripgate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writeOp struct {
	addr   uint16
	values []uint16
}

// recorderPort records every write transaction and serves reads from a
// seeded register map.
type recorderPort struct {
	writes    []writeOp
	inputRegs map[uint16]uint16
	err       error
}

func (p *recorderPort) WriteRegister(addr, value uint16) error {
	if p.err != nil {
		return p.err
	}
	p.writes = append(p.writes, writeOp{addr: addr, values: []uint16{value}})
	return nil
}

func (p *recorderPort) WriteRegisters(addr uint16, values []uint16) error {
	if p.err != nil {
		return p.err
	}
	p.writes = append(p.writes, writeOp{addr: addr, values: values})
	return nil
}

func (p *recorderPort) ReadInputRegister(addr uint16) (uint16, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.inputRegs[addr], nil
}

func (p *recorderPort) ReadInputRegisters(addr, quantity uint16) ([]uint16, error) {
	if p.err != nil {
		return nil, p.err
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = p.inputRegs[addr+uint16(i)]
	}
	return values, nil
}

func (p *recorderPort) Close() error { return nil }

func TestGripRejectsForceOutOfRange(t *testing.T) {
	for _, force := range []int{-1, 0, 5, 42} {
		port := &recorderPort{}
		g := NewGripperFromPort(port)

		err := g.Grip(force)

		assert.ErrorIs(t, err, ErrInvalidArgument, "force %d", force)
		assert.Empty(t, port.writes, "force %d must not reach the device", force)
	}
}

func TestGripWritesForceLevelThenTrigger(t *testing.T) {
	for force := ForceMin; force <= ForceMax; force++ {
		port := &recorderPort{}
		g := NewGripperFromPort(port)

		require.NoError(t, g.Grip(force))

		require.Len(t, port.writes, 2, "force %d", force)
		assert.Equal(t, writeOp{addr: RegForce, values: []uint16{ForceCode(force)}}, port.writes[0])
		assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdGrip | BitExecute}}, port.writes[1])
	}
}

func TestForceCode(t *testing.T) {
	assert.Equal(t, uint16(0x0300), ForceCode(1))
	assert.Equal(t, uint16(0x0200), ForceCode(2))
	assert.Equal(t, uint16(0x0100), ForceCode(3))
	assert.Equal(t, uint16(0x0000), ForceCode(4))
}

func TestReleaseIssuesSingleWrite(t *testing.T) {
	port := &recorderPort{}
	g := NewGripperFromPort(port)

	require.NoError(t, g.Release())

	require.Len(t, port.writes, 1)
	assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdRelease | BitExecute}}, port.writes[0])
}

func TestStopIssuesSingleWrite(t *testing.T) {
	port := &recorderPort{}
	g := NewGripperFromPort(port)

	require.NoError(t, g.Stop())

	require.Len(t, port.writes, 1)
	assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdStop | BitExecute}}, port.writes[0])
}

func TestFastStopWritesBareCommand(t *testing.T) {
	port := &recorderPort{}
	g := NewGripperFromPort(port)

	require.NoError(t, g.FastStop())

	require.Len(t, port.writes, 1)
	assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdFastStop}}, port.writes[0])
}

func TestSetPositionRejectsPercentOutOfRange(t *testing.T) {
	for _, percent := range []int{-1, 101, 1000} {
		port := &recorderPort{}
		g := NewGripperFromPort(port)

		err := g.SetPosition(percent)

		assert.ErrorIs(t, err, ErrInvalidArgument, "percent %d", percent)
		assert.Empty(t, port.writes, "percent %d must not reach the device", percent)
	}
}

func TestSetPositionWritesLinearTarget(t *testing.T) {
	for _, percent := range []int{0, 25, 50, 100} {
		port := &recorderPort{}
		g := NewGripperFromPort(port)

		require.NoError(t, g.SetPosition(percent))

		require.Len(t, port.writes, 1, "percent %d", percent)
		w := port.writes[0]
		assert.Equal(t, RegCommand, w.addr)
		require.Len(t, w.values, 4)
		assert.Equal(t, CmdMovePosition|BitExecute, w.values[0])

		mm := float64(100-percent) / 100 * MaxStrokeMM
		bits := math.Float32bits(float32(mm))
		assert.Equal(t, uint16(bits>>16), w.values[2], "percent %d", percent)
		assert.Equal(t, uint16(bits), w.values[3], "percent %d", percent)
	}
}

func TestAcknowledgeTogglesExecuteBit(t *testing.T) {
	port := &recorderPort{}
	g := NewGripperFromPort(port)

	require.NoError(t, g.Acknowledge())

	require.Len(t, port.writes, 2)
	assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdAcknowledge}}, port.writes[0])
	assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdAcknowledge | BitExecute}}, port.writes[1])
}

func TestReferenceTogglesExecuteBit(t *testing.T) {
	port := &recorderPort{}
	g := NewGripperFromPort(port)

	require.NoError(t, g.Reference())

	require.Len(t, port.writes, 2)
	assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdReference}}, port.writes[0])
	assert.Equal(t, writeOp{addr: RegCommand, values: []uint16{CmdReference | BitExecute}}, port.writes[1])
}

func TestSetIdleTimeout(t *testing.T) {
	port := &recorderPort{}
	g := NewGripperFromPort(port)

	require.NoError(t, g.SetIdleTimeout(30))

	require.Len(t, port.writes, 1)
	assert.Equal(t, writeOp{addr: RegIdleTimeout, values: []uint16{30}}, port.writes[0])
}

func TestCommunicationErrorIsSurfaced(t *testing.T) {
	port := &recorderPort{err: errors.New("connection reset")}
	g := NewGripperFromPort(port)

	assert.ErrorIs(t, g.Grip(2), ErrCommunication)
	assert.ErrorIs(t, g.Release(), ErrCommunication)
	assert.ErrorIs(t, g.SetPosition(50), ErrCommunication)
	assert.ErrorIs(t, g.Stop(), ErrCommunication)

	_, err := g.Status()
	assert.ErrorIs(t, err, ErrCommunication)
	_, err = g.Position()
	assert.ErrorIs(t, err, ErrCommunication)
}

func TestStatusDecodesStatusWord(t *testing.T) {
	port := &recorderPort{inputRegs: map[uint16]uint16{
		RegStatusWord: uint16(StatusReady)<<8 | 1<<14,
	}}
	g := NewGripperFromPort(port)

	status, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, StatusReady, status)

	success, err := g.Success()
	require.NoError(t, err)
	assert.True(t, success)
}

func TestStatusReportsLatchedError(t *testing.T) {
	port := &recorderPort{inputRegs: map[uint16]uint16{
		RegStatusWord: uint16(StatusError) << 8,
	}}
	g := NewGripperFromPort(port)

	status, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, StatusError, status)

	success, err := g.Success()
	require.NoError(t, err)
	assert.False(t, success)
}

func TestPositionReadsBackPercent(t *testing.T) {
	for _, percent := range []int{0, 25, 100} {
		words := PositionWords(percent)
		port := &recorderPort{inputRegs: map[uint16]uint16{
			RegActualPosition:     words[0],
			RegActualPosition + 1: words[1],
		}}
		g := NewGripperFromPort(port)

		got, err := g.Position()
		require.NoError(t, err)
		assert.Equal(t, percent, got)
	}
}

func TestNewGripperRejectsNonIPv4Host(t *testing.T) {
	for _, host := range []string{"gripper.local", "2001:db8::1", "", "172.31.1"} {
		_, err := NewGripper(host)
		assert.ErrorIs(t, err, ErrInvalidArgument, "host %q", host)
	}
}
