package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	ch1, stop1 := bus.Subscribe()
	ch2, stop2 := bus.Subscribe()
	defer stop1()
	defer stop2()

	want := PaymentComplete{WorksheetID: "ws-1", SessionID: "cs_test_123"}
	bus.Publish(want)

	for i, ch := range []<-chan PaymentComplete{ch1, ch2} {
		select {
		case got := <-ch:
			if got != want {
				t.Fatalf("subscriber %d got %+v, want %+v", i+1, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i+1)
		}
	}
}

func TestNoDeliveryAfterUnsubscribe(t *testing.T) {
	bus := NewBus()

	ch, stop := bus.Subscribe()
	stop()

	// Publishing after teardown must not deliver and must not panic.
	bus.Publish(PaymentComplete{WorksheetID: "ws-2", SessionID: "cs_test_456"})

	if ev, ok := <-ch; ok {
		t.Fatalf("unsubscribed channel delivered %+v, want closed", ev)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()

	_, stop := bus.Subscribe()
	stop()
	stop() // second call must be a no-op
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()

	_, stop := bus.Subscribe() // never drained
	defer stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(PaymentComplete{SessionID: "cs_flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}
}
