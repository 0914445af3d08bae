package events

import (
	"testing"
	"time"

	"github.com/tomehq/tome/internal/types"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHubRoutesByWork(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	w1, cancel1 := hub.Subscribe("w1")
	defer cancel1()
	w2, cancel2 := hub.Subscribe("w2")
	defer cancel2()

	hub.Publish(StageStatus("w1", "c1", types.StageOverview, types.StatusProcessing))

	got := recv(t, w1)
	if got.WorkID != "w1" || got.Type != TypeStageStatus {
		t.Fatalf("unexpected event: %+v", got)
	}
	select {
	case ev := <-w2:
		t.Fatalf("w2 subscriber received foreign event: %+v", ev)
	default:
	}
}

func TestHubGlobalEventsReachEveryone(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	w1, cancel1 := hub.Subscribe("w1")
	defer cancel1()
	all, cancelAll := hub.Subscribe("")
	defer cancelAll()

	hub.Publish(FoldersProcessing("organizing"))

	if got := recv(t, w1); got.Type != TypeFoldersProcessing {
		t.Fatalf("per-work subscriber: got %s, want %s", got.Type, TypeFoldersProcessing)
	}
	if got := recv(t, all); got.Type != TypeFoldersProcessing {
		t.Fatalf("firehose subscriber: got %s, want %s", got.Type, TypeFoldersProcessing)
	}
}

func TestHubFirehoseSeesAllWorks(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	all, cancel := hub.Subscribe("")
	defer cancel()

	hub.Publish(ChapterFinalized("w1", "c1"))
	hub.Publish(ChapterFinalized("w2", "c9"))

	first := recv(t, all)
	second := recv(t, all)
	if first.WorkID != "w1" || second.WorkID != "w2" {
		t.Fatalf("firehose order: got %q then %q", first.WorkID, second.WorkID)
	}
}

func TestHubDropsOldestOnOverflow(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("w1")
	defer cancel()

	// Overfill by one; the first event published should be the one evicted.
	for i := 0; i <= subscriberBuffer; i++ {
		hub.Publish(OverviewStream("w1", "c1", string(rune('a'+i%26))))
	}

	got := recv(t, ch)
	if got.Content == "a" {
		t.Fatal("oldest event survived overflow; expected it to be dropped")
	}
	drained := 1
	for {
		select {
		case <-ch:
			drained++
			continue
		default:
		}
		break
	}
	if drained != subscriberBuffer {
		t.Fatalf("buffered events = %d, want %d", drained, subscriberBuffer)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("w1")
	cancel()
	cancel() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	if n := hub.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}

	// Publishing after unsubscribe must not panic.
	hub.Publish(Status("w1", "still running"))
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe("w1")
	hub.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after hub close")
	}

	late, cancel := hub.Subscribe("w2")
	defer cancel()
	if _, ok := <-late; ok {
		t.Fatal("expected closed channel from post-close subscribe")
	}
	hub.Publish(Status("w1", "ignored"))
}
