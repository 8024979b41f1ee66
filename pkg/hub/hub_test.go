package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/place/pkg/canvas"
)

func recv(t *testing.T, sub *Subscription) canvas.Pixel {
	t.Helper()
	select {
	case p, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return p
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery")
	}
	return canvas.Pixel{}
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case p, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected delivery %+v", p)
		}
	default:
	}
}

func TestHub_PublishReachesEverySubscriberOnce(t *testing.T) {
	h := New()
	a, _ := h.Subscribe()
	b, _ := h.Subscribe()

	p := canvas.Pixel{X: 1, Y: 1, Color: canvas.Color{R: 255}}
	if n := h.Publish(p); n != 2 {
		t.Fatalf("Publish() delivered %d, want 2", n)
	}
	if got := recv(t, a); got != p {
		t.Errorf("a got %+v, want %+v", got, p)
	}
	if got := recv(t, b); got != p {
		t.Errorf("b got %+v, want %+v", got, p)
	}
	assertEmpty(t, a)
	assertEmpty(t, b)
}

func TestHub_LateSubscriberMissesEarlierWrites(t *testing.T) {
	h := New()
	early, _ := h.Subscribe()
	h.Publish(canvas.Pixel{X: 1})

	late, _ := h.Subscribe()
	assertEmpty(t, late)

	h.Publish(canvas.Pixel{X: 2})
	if got := recv(t, early); got.X != 1 {
		t.Errorf("early first = %d, want 1", got.X)
	}
	if got := recv(t, early); got.X != 2 {
		t.Errorf("early second = %d, want 2", got.X)
	}
	if got := recv(t, late); got.X != 2 {
		t.Errorf("late = %d, want 2", got.X)
	}
}

func TestHub_PreservesOrderPerSubscriber(t *testing.T) {
	h := New()
	sub, _ := h.Subscribe()
	for i := uint32(0); i < 100; i++ {
		h.Publish(canvas.Pixel{X: i})
	}
	for i := uint32(0); i < 100; i++ {
		if got := recv(t, sub); got.X != i {
			t.Fatalf("delivery %d has X=%d", i, got.X)
		}
	}
}

func TestHub_SlowSubscriberIsEvicted(t *testing.T) {
	h := New(WithBuffer(2))
	slow, _ := h.Subscribe()
	fast, _ := h.Subscribe()

	for i := uint32(0); i < 3; i++ {
		h.Publish(canvas.Pixel{X: i})
		recv(t, fast)
	}

	if !slow.Dropped() {
		t.Fatal("slow subscriber not marked dropped")
	}
	if fast.Dropped() {
		t.Fatal("fast subscriber marked dropped")
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
	// Buffered deliveries drain, then the channel reports closed.
	recv(t, slow)
	recv(t, slow)
	if _, ok := <-slow.C(); ok {
		t.Fatal("evicted subscription channel still open")
	}
	if got := h.Stats().Evicted; got != 1 {
		t.Errorf("Stats().Evicted = %d, want 1", got)
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	h := New()
	sub, _ := h.Subscribe()
	sub.Close()
	sub.Close()
	if h.Len() != 0 {
		t.Fatalf("Len() = %d after Close, want 0", h.Len())
	}
	if n := h.Publish(canvas.Pixel{}); n != 0 {
		t.Errorf("Publish() after unsubscribe delivered %d", n)
	}
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := New()
	sub, _ := h.Subscribe()
	h.Close()
	if _, ok := <-sub.C(); ok {
		t.Fatal("channel open after hub Close")
	}
	if _, err := h.Subscribe(); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("Subscribe() after Close error = %v, want ErrHubClosed", err)
	}
	sub.Close()
}

func TestHub_ConcurrentPublishAndSubscribe(t *testing.T) {
	h := New(WithBuffer(4096))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h.Publish(canvas.Pixel{X: uint32(j)})
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub, err := h.Subscribe()
				if err != nil {
					t.Error(err)
					return
				}
				sub.Close()
			}
		}()
	}
	wg.Wait()
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	if got := h.Stats().Published; got != 800 {
		t.Errorf("Published = %d, want 800", got)
	}
}
