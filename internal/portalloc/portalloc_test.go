package portalloc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsPortWithinRange(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	base := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	a := New(base, base+50)
	port, err := a.Allocate()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, port, base)
	assert.LessOrEqual(t, port, base+50)
}

func TestAllocateSkipsPortsAlreadyBound(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	taken := ln.Addr().(*net.TCPAddr).Port

	a := New(taken, taken+20)
	port, err := a.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, taken, port)
}

func TestAllocateErrorsWhenRangeExhausted(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	taken := ln.Addr().(*net.TCPAddr).Port

	a := New(taken, taken)
	_, err = a.Allocate()
	assert.Error(t, err)
}

func TestListenWithRetryReturnsOpenListener(t *testing.T) {
	probe, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	base := probe.Addr().(*net.TCPAddr).Port
	probe.Close()

	a := New(base, base+50)
	ln, port, err := a.ListenWithRetry()
	require.NoError(t, err)
	defer ln.Close()
	assert.Equal(t, port, ln.Addr().(*net.TCPAddr).Port)
}
