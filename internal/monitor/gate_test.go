package monitor

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGateAcceptsChangedHashes(t *testing.T) {
	g := &Gate{}

	if !g.Accept("a") {
		t.Fatal("first hash rejected")
	}
	if g.Accept("a") {
		t.Fatal("repeat of current hash accepted")
	}
	if !g.Accept("b") {
		t.Fatal("new hash rejected")
	}
	// A, B, A is three distinct clipboard states, not a duplicate.
	if !g.Accept("a") {
		t.Fatal("return to earlier hash rejected")
	}
}

func TestGateObserveSuppressesNextAccept(t *testing.T) {
	g := &Gate{}
	g.Accept("a")

	g.Observe("pasted")
	if g.Accept("pasted") {
		t.Fatal("observed hash accepted")
	}
	if !g.Accept("typed") {
		t.Fatal("fresh hash rejected after observe")
	}
}

func TestGateConcurrentSameHash(t *testing.T) {
	g := &Gate{}
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Accept("h") {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := accepted.Load(); got != 1 {
		t.Fatalf("expected exactly 1 accept, got %d", got)
	}
}
