package repository

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedValue struct {
	name   string
	closed atomic.Int32
}

func (v *trackedValue) Close() {
	v.closed.Add(1)
}

func TestCacheRegistry_SaveGetDelete(t *testing.T) {
	r := NewCacheRegistry[*trackedValue](time.Hour, time.Minute)

	a := &trackedValue{name: "a"}
	r.Save("a", a)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Len(t, r.List(), 1)

	r.Delete("a")
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.EqualValues(t, 1, a.closed.Load())
	assert.Zero(t, r.Len())
}

func TestCacheRegistry_ExpiryClosesValue(t *testing.T) {
	r := NewCacheRegistry[*trackedValue](20*time.Millisecond, 5*time.Millisecond)

	v := &trackedValue{name: "v"}
	r.Save("v", v)

	assert.Eventually(t, func() bool {
		return v.closed.Load() == 1
	}, time.Second, 5*time.Millisecond)

	_, ok := r.Get("v")
	assert.False(t, ok)
}
