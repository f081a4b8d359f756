//go:build !windows

package fiberio

import (
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIOManager_AddEventFiresOnReadable(t *testing.T) {
	mgr, err := NewIOManager(WithWorkers(1), WithMaxTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer mgr.Close()
	defer mgr.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	require.NoError(t, unix.SetNonblock(int(r.Fd()), true))

	fired := make(chan struct{}, 1)
	require.NoError(t, mgr.AddEvent(int(r.Fd()), EventRead, func() { fired <- struct{}{} }))

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestIOManager_DuplicateEventRejected(t *testing.T) {
	mgr, err := NewIOManager(WithWorkers(1))
	require.NoError(t, err)
	defer mgr.Close()
	defer mgr.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	require.NoError(t, unix.SetNonblock(int(r.Fd()), true))

	require.NoError(t, mgr.AddEvent(int(r.Fd()), EventRead, func() {}))
	err = mgr.AddEvent(int(r.Fd()), EventRead, func() {})
	assert.ErrorIs(t, err, ErrDuplicateEvent)
}

func TestIOManager_CancelEventFiresImmediately(t *testing.T) {
	mgr, err := NewIOManager(WithWorkers(1))
	require.NoError(t, err)
	defer mgr.Close()
	defer mgr.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	require.NoError(t, unix.SetNonblock(int(r.Fd()), true))

	fired := make(chan struct{}, 1)
	require.NoError(t, mgr.AddEvent(int(r.Fd()), EventRead, func() { fired <- struct{}{} }))
	require.NoError(t, mgr.CancelEvent(int(r.Fd()), EventRead))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled event callback never fired")
	}
}

func TestIOManager_NoSuchFDErrors(t *testing.T) {
	mgr, err := NewIOManager(WithWorkers(1))
	require.NoError(t, err)
	defer mgr.Close()
	defer mgr.Stop()

	err = mgr.DelEvent(99999, EventRead)
	assert.ErrorIs(t, err, ErrNoSuchFD)
}

func TestIOManager_CancelAllFiresBothDirections(t *testing.T) {
	mgr, err := NewIOManager(WithWorkers(1))
	require.NoError(t, err)
	defer mgr.Close()
	defer mgr.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	require.NoError(t, unix.SetNonblock(int(r.Fd()), true))
	require.NoError(t, unix.SetNonblock(int(w.Fd()), true))

	fired := make(chan string, 2)
	require.NoError(t, mgr.AddEvent(int(r.Fd()), EventRead, func() { fired <- "read" }))
	require.NoError(t, mgr.AddEvent(int(r.Fd()), EventWrite, func() { fired <- "write" }))

	require.NoError(t, mgr.CancelAll(int(r.Fd())))

	var got []string
	for len(got) < 2 {
		select {
		case s := <-fired:
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatal("CancelAll never fired both registered callbacks")
		}
	}
	assert.Equal(t, []string{"read", "write"}, got)
}
