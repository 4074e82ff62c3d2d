package txn

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRunsInFIFOOrder(t *testing.T) {
	m := NewManager()
	defer m.Shutdown()

	var mu sync.Mutex
	var order []int
	var ids []uint64

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			// stagger enqueue so the FIFO order is deterministic
			time.Sleep(time.Duration(i*20) * time.Millisecond)
			err := m.Execute(func(tx *Transaction) error {
				mu.Lock()
				order = append(order, i)
				ids = append(ids, tx.ID)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1], "transaction ids are strictly increasing")
	}
}

func TestSerialExecution(t *testing.T) {
	m := NewManager()
	defer m.Shutdown()

	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Execute(func(*Transaction) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "work functions never overlap")
}

func TestErrorPropagatesToOneCaller(t *testing.T) {
	m := NewManager()
	defer m.Shutdown()

	boom := errors.New("boom")
	err := m.Execute(func(*Transaction) error { return boom })
	assert.ErrorIs(t, err, boom)

	// later transactions are unaffected
	assert.NoError(t, m.Execute(func(*Transaction) error { return nil }))
}

func TestPanicIsRecoveredAndReturned(t *testing.T) {
	m := NewManager()
	defer m.Shutdown()

	err := m.Execute(func(*Transaction) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	assert.NoError(t, m.Execute(func(*Transaction) error { return nil }))
}

func TestCallerObservesEarlierWrites(t *testing.T) {
	m := NewManager()
	defer m.Shutdown()

	var state []string
	require.NoError(t, m.Execute(func(*Transaction) error {
		state = append(state, "first")
		return nil
	}))
	require.NoError(t, m.Execute(func(*Transaction) error {
		state = append(state, "second")
		return nil
	}))
	assert.Equal(t, []string{"first", "second"}, state)
}

func TestShutdownRejectsNewWork(t *testing.T) {
	m := NewManager()
	m.Shutdown()

	err := m.Execute(func(*Transaction) error { return nil })
	assert.Error(t, err)

	// shutdown is idempotent
	m.Shutdown()
}
