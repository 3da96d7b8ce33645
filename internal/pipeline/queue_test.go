package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
)

func seg(id string) *audio.Segment {
	return &audio.Segment{ID: id}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(3)
	for _, id := range []string{"a", "b", "c"} {
		if evicted, err := q.Push(seg(id)); err != nil || evicted != nil {
			t.Fatalf("Push %s: evicted=%v err=%v", id, evicted, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if got.ID != want {
			t.Errorf("Expected %s, got %s", want, got.ID)
		}
	}
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(2)
	q.Push(seg("a"))
	q.Push(seg("b"))

	evicted, err := q.Push(seg("c"))
	if err != nil {
		t.Fatal(err)
	}
	if evicted == nil || evicted.ID != "a" {
		t.Fatalf("Expected oldest segment to be evicted, got %v", evicted)
	}
	if q.Dropped() != 1 || q.Len() != 2 {
		t.Errorf("Expected 1 drop and 2 queued, got %d and %d", q.Dropped(), q.Len())
	}

	first, _ := q.Pop(context.Background())
	if first.ID != "b" {
		t.Errorf("Expected b, got %s", first.ID)
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue(4)
	q.Push(seg("a"))
	q.Close()
	q.Close()

	if _, err := q.Push(seg("b")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed on push, got %v", err)
	}

	got, err := q.Pop(context.Background())
	if err != nil || got.ID != "a" {
		t.Fatalf("Queued segment should survive Close, got %v, %v", got, err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(1)
	got := make(chan *audio.Segment, 1)
	go func() {
		s, _ := q.Pop(context.Background())
		got <- s
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(seg("late"))

	select {
	case s := <-got:
		if s.ID != "late" {
			t.Errorf("Expected late, got %s", s.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueueCloseWakesConsumers(t *testing.T) {
	q := NewQueue(1)
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Pop(context.Background())
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("Expected ErrQueueClosed, got %v", err)
		}
	}
}

func TestQueuePopContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestQueueManyConsumers(t *testing.T) {
	q := NewQueue(100)
	for i := 0; i < 50; i++ {
		q.Push(seg("s"))
	}
	q.Close()

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := q.Pop(context.Background()); err != nil {
					return
				}
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Errorf("Expected 50 segments consumed, got %d", count)
	}
}
