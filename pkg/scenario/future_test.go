package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getstubd/stubd/pkg/message"
)

func TestReplyFuture_CompleteOnce(t *testing.T) {
	f := NewReplyFuture()
	first := message.NewOutbound("first")
	second := message.NewOutbound("second")

	if !f.Complete(first) {
		t.Fatal("first Complete should win")
	}
	if f.Complete(second) {
		t.Error("second Complete should be a no-op")
	}

	got, err := f.Await(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if got != first {
		t.Errorf("waiter observed %q, want the first value %q", got.Payload, first.Payload)
	}
}

func TestReplyFuture_CompleteConcurrent(t *testing.T) {
	f := NewReplyFuture()

	var wg sync.WaitGroup
	wins := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if f.Complete(message.NewOutbound("reply")) {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly one winning completion, got %d", count)
	}
}

func TestReplyFuture_AwaitTimeout(t *testing.T) {
	f := NewReplyFuture()

	_, err := f.Await(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrReplyTimeout) {
		t.Fatalf("expected ErrReplyTimeout, got %v", err)
	}
}

func TestReplyFuture_AwaitCancelled(t *testing.T) {
	f := NewReplyFuture()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.Await(ctx, time.Minute)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after cancellation")
	}
}

func TestReplyFuture_Completed(t *testing.T) {
	f := NewReplyFuture()
	if f.Completed() {
		t.Error("new future reports completed")
	}
	f.Complete(message.NewOutbound("x"))
	if !f.Completed() {
		t.Error("completed future reports pending")
	}
}
