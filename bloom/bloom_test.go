package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddContains(t *testing.T) {
	f := NewDefault(100)
	f.Add([]byte("addr-1"))
	f.Add([]byte("addr-2"))

	require.True(t, f.Contains([]byte("addr-1")))
	require.True(t, f.Contains([]byte("addr-2")))
}

func TestContainsFalseForAbsentKey(t *testing.T) {
	f := NewDefault(100)
	f.Add([]byte("addr-1"))
	require.False(t, f.Contains([]byte("never-added")))
}

func TestNoFalseNegatives(t *testing.T) {
	f := NewDefault(1000)
	keys := make([][]byte, 0, 500)
	for i := 0; i < 500; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		keys = append(keys, k)
		f.Add(k)
	}
	for _, k := range keys {
		require.True(t, f.Contains(k))
	}
}

func TestIntersects(t *testing.T) {
	f := NewDefault(10)
	f.Add([]byte("x"))

	require.True(t, f.Intersects([][]byte{[]byte("y"), []byte("x")}))
	require.False(t, f.Intersects([][]byte{[]byte("y"), []byte("z")}))
}

func TestReset(t *testing.T) {
	f := NewDefault(10)
	f.Add([]byte("x"))
	require.True(t, f.Contains([]byte("x")))

	f.Reset()
	require.False(t, f.Contains([]byte("x")))
}
