package events

import (
	"testing"

	"gigchain/core/types"
)

func TestBusDeliversClones(t *testing.T) {
	bus := NewBus(4)
	sub := bus.Subscribe()
	defer sub.Close()

	evt := &types.Event{Type: "JobCreated", Attributes: map[string]string{"jobId": "1"}}
	bus.Publish(Record{Seq: 1, Event: evt})

	got := <-sub.C()
	if got.Seq != 1 || got.Event.Type != "JobCreated" {
		t.Fatalf("unexpected record %+v", got)
	}
	got.Event.Attributes["jobId"] = "2"
	if evt.Attributes["jobId"] != "1" {
		t.Fatalf("subscriber mutated the published event")
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(1)
	drops := 0
	bus.OnDrop(func() { drops++ })
	sub := bus.Subscribe()
	defer sub.Close()

	evt := &types.Event{Type: "VoteCast", Attributes: map[string]string{}}
	bus.Publish(Record{Seq: 1, Event: evt})
	bus.Publish(Record{Seq: 2, Event: evt})

	if sub.Dropped() != 1 || drops != 1 {
		t.Fatalf("expected one drop, got %d/%d", sub.Dropped(), drops)
	}
	if got := <-sub.C(); got.Seq != 1 {
		t.Fatalf("expected first record kept, got %d", got.Seq)
	}
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus(1)
	sub := bus.Subscribe()
	if bus.Len() != 1 {
		t.Fatalf("expected one subscriber")
	}
	sub.Close()
	sub.Close()
	if bus.Len() != 0 {
		t.Fatalf("expected subscriber removed")
	}
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected closed channel")
	}
	bus.Publish(Record{Seq: 1, Event: &types.Event{Type: "x"}})
}
