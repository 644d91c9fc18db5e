package rstmgo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSharedHandleReadWrite exercises the reading/writing capability
// views section 6 maps the smart-handle vocabulary onto.
func TestSharedHandleReadWrite(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Shutdown()

	h := NewSharedHandle(rt, 10)
	d := rt.ThreadInit()
	defer rt.ThreadShutdown(d)

	rt.Atomically(d, func(txn *Txn) {
		r := h.Open(txn)
		require.Equal(t, 10, r.Get())
	})

	rt.Atomically(d, func(txn *Txn) {
		w := h.OpenRW(txn)
		require.Equal(t, 10, w.Get())
		w.Set(20)
		require.Equal(t, 20, w.Get())
	})

	rt.Atomically(d, func(txn *Txn) {
		r := h.Open(txn)
		require.Equal(t, 20, r.Get())
	})
}

// TestUnprotectedHandleBypassesLogging covers the documented misuse
// boundary: an UnprotectedHandle reads and writes directly with no
// transaction involved at all.
func TestUnprotectedHandleBypassesLogging(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Shutdown()

	h := NewSharedHandle(rt, "a")
	u := h.OpenUnprotected()
	require.Equal(t, "a", u.Get())
	u.Set("b")
	require.Equal(t, "b", u.Get())
}
