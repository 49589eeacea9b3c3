package ai

import (
	"sort"
	"sync"
	"testing"
	"time"
)

func TestThrottleSpacesSequentialCalls(t *testing.T) {
	c := NewClient("", "key", "")
	c.callInterval = 20 * time.Millisecond

	c.throttle()
	start := time.Now()
	c.throttle()
	if elapsed := time.Since(start); elapsed < c.callInterval {
		t.Fatalf("second call fired after %v, want at least %v", elapsed, c.callInterval)
	}
}

func TestThrottleSpacesConcurrentCallers(t *testing.T) {
	c := NewClient("", "key", "")
	c.callInterval = 20 * time.Millisecond

	const callers = 4
	var mu sync.Mutex
	stamps := make([]time.Time, 0, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.throttle()
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	// The stamp is taken after throttle returns, so scheduling delay can
	// shrink an observed gap slightly; half the interval still separates
	// properly spaced callers from ones that raced through together.
	minGap := c.callInterval / 2
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < minGap {
			t.Fatalf("callers %d and %d fired %v apart, want at least %v", i-1, i, gap, minGap)
		}
	}
}
