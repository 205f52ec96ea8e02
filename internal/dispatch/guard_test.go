package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huntwise/regwatch/internal/regdata"
)

func TestGuardRejectsOverlap(t *testing.T) {
	t.Parallel()

	g := NewGuard()

	release, ok := g.TryAcquire("CO", regdata.CategoryFees)
	require.True(t, ok)

	_, ok = g.TryAcquire("CO", regdata.CategoryFees)
	require.False(t, ok, "second overlapping attempt must be rejected")

	// Different category or source is independent.
	releaseOther, ok := g.TryAcquire("CO", regdata.CategoryDeadlines)
	require.True(t, ok)
	releaseOther()

	releaseWY, ok := g.TryAcquire("WY", regdata.CategoryFees)
	require.True(t, ok)
	releaseWY()

	release()
	release2, ok := g.TryAcquire("CO", regdata.CategoryFees)
	require.True(t, ok, "pair is reusable after release")
	release2()
}

func TestGuardConcurrentAcquire(t *testing.T) {
	t.Parallel()

	g := NewGuard()
	const attempts = 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.TryAcquire("NM", regdata.CategoryRegulations); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins, "exactly one concurrent attempt may win the pair")
}
