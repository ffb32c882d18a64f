package projectlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithLockSerializesSameProject(t *testing.T) {
	m := New()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLock("ACME", func() error {
				n := atomic.AddInt32(&active, 1)
				if n > atomic.LoadInt32(&maxActive) {
					atomic.StoreInt32(&maxActive, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxActive)
}

func TestDifferentProjectsDoNotBlockEachOther(t *testing.T) {
	m := New()
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = m.WithLock("ACME", func() error {
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		_ = m.WithLock("WIDGET", func() error {
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}()
	wg.Wait()

	require.Less(t, time.Since(start), 90*time.Millisecond)
}
