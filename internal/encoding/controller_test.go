package encoding

import (
	"math"
	"sync"
	"testing"
)

func TestControllerCancelOnce(t *testing.T) {
	c := NewController()
	if !c.Running() {
		t.Fatal("new controller should be running")
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Cancel() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("Cancel reported success %d times", wins)
	}
	if c.Running() || !c.stopRequested() {
		t.Fatal("controller still running after Cancel")
	}
}

func TestControllerSkipCurrent(t *testing.T) {
	c := NewController()
	c.SkipCurrent()
	if !c.stopRequested() || !c.Running() {
		t.Fatal("skip should request a stop without cancelling the run")
	}
	c.clearSkip()
	if c.stopRequested() {
		t.Fatal("skip not cleared")
	}
}

func TestOverallPercent(t *testing.T) {
	tests := []struct {
		index    int
		fraction float64
		total    int
		want     int
	}{
		{0, 0, 2, 0},
		{0, 0.5, 2, 25},
		{0, 1, 2, 50},
		{1, 0, 2, 50},
		{1, 1, 2, 100},
		{0, 0.5, 0, 50},
		{3, 1, 2, 100},
		{0, -1, 2, 0},
		{0, math.NaN(), 4, 0},
		{2, 0.333, 3, 77},
	}
	for _, tt := range tests {
		if got := OverallPercent(tt.index, tt.fraction, tt.total); got != tt.want {
			t.Errorf("OverallPercent(%d, %v, %d) = %d, want %d", tt.index, tt.fraction, tt.total, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]FileState{
		{StateProbing, StateEncoding},
		{StateProbing, StateFailed},
		{StateProbing, StateCancelled},
		{StateEncoding, StateSucceeded},
		{StateEncoding, StateFailed},
		{StateEncoding, StateCancelled},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Errorf("%s -> %s should be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]FileState{
		{StateProbing, StateSucceeded},
		{StateSucceeded, StateEncoding},
		{StateFailed, StateProbing},
		{StateCancelled, StateEncoding},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Errorf("%s -> %s should be denied", pair[0], pair[1])
		}
	}
	if !StateCancelled.Terminal() || StateEncoding.Terminal() {
		t.Fatal("Terminal misclassified")
	}
}
