package keymutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryLock_FailsWhileHeld(t *testing.T) {
	km := New()

	require.True(t, km.TryLock("item_1"))
	require.False(t, km.TryLock("item_1"))

	km.Unlock("item_1")
	require.True(t, km.TryLock("item_1"))
	km.Unlock("item_1")
}

func TestKeysAreIndependent(t *testing.T) {
	km := New()

	require.True(t, km.TryLock("item_1"))
	require.True(t, km.TryLock("item_2"))
	km.Unlock("item_1")
	km.Unlock("item_2")
}

func TestLock_BlocksUntilReleased(t *testing.T) {
	km := New()
	km.Lock("item_1")

	acquired := make(chan struct{})
	go func() {
		km.Lock("item_1")
		close(acquired)
		km.Unlock("item_1")
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	default:
	}

	km.Unlock("item_1")
	<-acquired
}

func TestConcurrentCounter(t *testing.T) {
	km := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("counter")
			counter++
			km.Unlock("counter")
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter)
}
