package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateDrainsAdmittedWork(t *testing.T) {
	var g gate
	require.True(t, g.enter())

	closed := make(chan struct{})
	go func() {
		g.close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while work was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	g.leave()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close did not return after work finished")
	}
}

func TestGateRefusesAfterClose(t *testing.T) {
	var g gate
	g.close()
	assert.False(t, g.enter())
}
