package eventbus

import "testing"

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	if n := bus.Publish("hello"); n != 0 {
		t.Fatalf("unexpected eviction count %d", n)
	}
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestTypedBusSlowSubscriberKeepsNewest(t *testing.T) {
	bus := NewTyped[int]()
	ch := bus.Subscribe()
	evicted := 0
	for i := 0; i < subscriberBuffer*3; i++ {
		evicted += bus.Publish(i)
	}
	if evicted != subscriberBuffer*2 {
		t.Fatalf("expected %d evictions got %d", subscriberBuffer*2, evicted)
	}
	var last int
	n := 0
	for len(ch) > 0 {
		last = <-ch
		n++
	}
	if n != subscriberBuffer {
		t.Fatalf("expected %d buffered events got %d", subscriberBuffer, n)
	}
	if last != subscriberBuffer*3-1 {
		t.Fatalf("expected newest event %d got %d", subscriberBuffer*3-1, last)
	}
	if bus.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber")
	}
}

func TestTypedBusPublishAfterClose(t *testing.T) {
	bus := NewTyped[int]()
	bus.Close()
	if n := bus.Publish(1); n != 0 {
		t.Fatalf("expected no-op publish, got %d", n)
	}
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
