// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialogue

import (
	"sync"
	"testing"
)

func TestLockTableSerializesPerKey(t *testing.T) {
	table := newLockTable()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := table.Acquire("session-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
	if table.Len() != 0 {
		t.Errorf("lock table still holds %d entries after release", table.Len())
	}
}

func TestLockTableIndependentKeys(t *testing.T) {
	table := newLockTable()

	releaseA := table.Acquire("session-a")
	defer releaseA()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		release := table.Acquire("session-b")
		release()
		close(done)
	}()
	<-done

	if table.Len() != 1 {
		t.Errorf("lock table holds %d entries, want 1 (only session-a held)", table.Len())
	}
}
