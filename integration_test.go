package gripgate_test

import (
	"net"
	"testing"
	"time"

	"github.com/rwirdemann/gripgate"
	"github.com/rwirdemann/gripgate/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Append(string) {}

func startSim(t *testing.T) *sim.GripperServer {
	t.Helper()
	s := sim.NewGripperServer("127.0.0.1:0", nopLogger{})
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func TestGripAgainstSimulator(t *testing.T) {
	s := startSim(t)
	g, err := gripgate.NewGripperWithTimeout(s.Addr(), time.Second)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	require.NoError(t, g.Grip(1))

	force, ok := s.HoldingRegister(gripgate.RegForce)
	require.True(t, ok)
	assert.Equal(t, gripgate.ForceCode(1), force)

	command, ok := s.HoldingRegister(gripgate.RegCommand)
	require.True(t, ok)
	assert.Equal(t, gripgate.CmdGrip|gripgate.BitExecute, command)

	status, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, gripgate.StatusReady, status)

	success, err := g.Success()
	require.NoError(t, err)
	assert.True(t, success)

	position, err := g.Position()
	require.NoError(t, err)
	assert.Equal(t, 0, position, "gripping closes the fingers")
}

func TestSetPositionAgainstSimulator(t *testing.T) {
	s := startSim(t)
	g, err := gripgate.NewGripperWithTimeout(s.Addr(), time.Second)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	require.NoError(t, g.SetPosition(25))

	words := gripgate.PositionWords(25)
	hi, ok := s.HoldingRegister(gripgate.RegTargetPosition)
	require.True(t, ok)
	assert.Equal(t, words[0], hi)
	lo, ok := s.HoldingRegister(gripgate.RegTargetPosition + 1)
	require.True(t, ok)
	assert.Equal(t, words[1], lo)

	position, err := g.Position()
	require.NoError(t, err)
	assert.Equal(t, 25, position)
}

func TestReleaseOpensFingers(t *testing.T) {
	s := startSim(t)
	g, err := gripgate.NewGripperWithTimeout(s.Addr(), time.Second)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	require.NoError(t, g.Grip(4))
	require.NoError(t, g.Release())

	position, err := g.Position()
	require.NoError(t, err)
	assert.Equal(t, 100, position)
}

func TestFastStopLatchesErrorUntilAcknowledged(t *testing.T) {
	s := startSim(t)
	g, err := gripgate.NewGripperWithTimeout(s.Addr(), time.Second)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	require.NoError(t, g.FastStop())

	status, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, gripgate.StatusError, status)

	require.NoError(t, g.Acknowledge())

	status, err = g.Status()
	require.NoError(t, err)
	assert.Equal(t, gripgate.StatusReady, status)
}

func TestConstructUnreachableEndpoint(t *testing.T) {
	// grab a loopback port nobody listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	start := time.Now()
	_, err = gripgate.NewGripperWithTimeout(addr, 500*time.Millisecond)
	assert.ErrorIs(t, err, gripgate.ErrConnection)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestOfflineDeviceSurfacesCommunicationError(t *testing.T) {
	s := startSim(t)
	g, err := gripgate.NewGripperWithTimeout(s.Addr(), 200*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	s.Disconnect()

	assert.ErrorIs(t, g.Release(), gripgate.ErrCommunication)
}
