package grouporders

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLocksSerializesSameOrder(t *testing.T) {
	locks := newOrderLocks()
	orderID := uuid.New()

	const workers = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire(orderID)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestOrderLocksReleasesEntryWhenIdle(t *testing.T) {
	locks := newOrderLocks()
	orderID := uuid.New()

	release := locks.Acquire(orderID)
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	require.Empty(t, locks.entries)
}

func TestOrderLocksReleaseIsIdempotent(t *testing.T) {
	locks := newOrderLocks()
	orderID := uuid.New()

	release := locks.Acquire(orderID)
	release()
	release()

	second := locks.Acquire(orderID)
	second()
}

func TestOrderLocksDifferentOrdersDoNotBlock(t *testing.T) {
	locks := newOrderLocks()

	releaseA := locks.Acquire(uuid.New())
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := locks.Acquire(uuid.New())
		releaseB()
		close(done)
	}()

	<-done
}
