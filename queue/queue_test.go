package queue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/quietloop/vaultpipe/queue"
)

// TestFlushSemantics covers spec.md scenario 4: push 3, close, pop 4 times —
// the first three succeed in push order, the fourth is flushed.
func TestFlushSemantics(t *testing.T) {
	q := queue.New(8)
	q.Open()
	for _, v := range []string{"a", "b", "c"} {
		if !q.Push(v) {
			t.Fatalf("push %q: rejected while open", v)
		}
	}
	q.Close()

	want := []string{"a", "b", "c"}
	for i, w := range want {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: expected item, got flushed", i)
		}
		if got != w {
			t.Fatalf("pop %d: got %v want %v", i, got, w)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("fourth pop should report flushed")
	}
}

// TestPushBlocksWhileFull covers invariant 3: Push never returns success
// while size == N and the queue is open.
func TestPushBlocksWhileFull(t *testing.T) {
	q := queue.New(1)
	q.Open()
	if !q.Push(1) {
		t.Fatal("first push should succeed")
	}

	done := make(chan struct{})
	go func() {
		q.Push(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("push on a full, open queue must block")
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok := q.Pop(); !ok {
		t.Fatal("pop should free a slot")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push should have unblocked once a slot freed")
	}
}

// TestPopBlocksWhileEmpty covers invariant 3's pop-side symmetric case.
func TestPopBlocksWhileEmpty(t *testing.T) {
	q := queue.New(4)
	q.Open()
	done := make(chan interface{})
	go func() {
		v, _ := q.Pop()
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("pop on an empty, open queue must block")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push("x")
	select {
	case v := <-done:
		if v != "x" {
			t.Fatalf("got %v want x", v)
		}
	case <-time.After(time.Second):
		t.Fatal("pop should have unblocked once an item arrived")
	}
}

// TestPushPopCountsMatchOnDrain covers invariant 3's conservation property:
// total successful pops equals total successful pushes across a
// closed+drained queue, concurrently.
func TestPushPopCountsMatchOnDrain(t *testing.T) {
	q := queue.New(16)
	q.Open()

	const n = 5000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
		q.Close()
	}()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	wg.Wait()
	if count != n {
		t.Fatalf("popped %d items, want %d", count, n)
	}
}

func TestSignalWakesPoppersWithoutClosing(t *testing.T) {
	q := queue.New(4)
	q.Open()

	woke := make(chan struct{})
	go func() {
		q.Pop()
		close(woke)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Signal()

	select {
	case <-woke:
		t.Fatal("signal alone must not hand out an item; popper should re-block")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push("late")
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("popper should wake once an item actually arrives")
	}
}
