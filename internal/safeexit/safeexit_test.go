package safeexit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopCancelsContextAndRunsCleanupOnce(t *testing.T) {
	e := New(context.Background())

	var calls int
	e.Register(func() { calls++ })
	e.Register(func() { calls++ })

	e.Stop()
	e.Stop() // idempotent

	assert.Equal(t, 2, calls)

	select {
	case <-e.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled")
	}
}

func TestContextUncanceledUntilStop(t *testing.T) {
	e := New(context.Background())
	select {
	case <-e.Context().Done():
		t.Fatal("context canceled before Stop")
	default:
	}
}
