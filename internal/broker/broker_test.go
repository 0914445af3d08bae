package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryJobsFIFO(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := m.PublishJob(ctx, []byte{byte('a' + i)}); err != nil {
			t.Fatalf("PublishJob: %v", err)
		}
	}
	if m.Pending() != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", m.Pending())
	}

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.ConsumeJobs(ctx, func(_ context.Context, body []byte) error {
			mu.Lock()
			got = append(got, string(body))
			if len(got) == 3 {
				cancel()
			}
			mu.Unlock()
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemoryJobHandlerErrorStillAcks(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.PublishJob(ctx, []byte("one")); err != nil {
		t.Fatalf("PublishJob: %v", err)
	}
	if err := m.PublishJob(ctx, []byte("two")); err != nil {
		t.Fatalf("PublishJob: %v", err)
	}

	var mu sync.Mutex
	var seen []string
	go func() {
		_ = m.ConsumeJobs(ctx, func(_ context.Context, body []byte) error {
			mu.Lock()
			seen = append(seen, string(body))
			n := len(seen)
			mu.Unlock()
			if n == 2 {
				cancel()
			}
			return fmt.Errorf("handler failure")
		})
	}()

	<-ctx.Done()
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected both jobs delivered once each, got %v", seen)
	}
}

func TestMemoryEventsBroadcast(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{}, 2)
	recv := make(chan string, 4)
	for i := 0; i < 2; i++ {
		go func() {
			ready <- struct{}{}
			_ = m.ConsumeEvents(ctx, func(body []byte) {
				recv <- string(body)
			})
		}()
	}
	<-ready
	<-ready
	// Subscription registration races the ready signal; poll until both
	// handlers are attached.
	deadline := time.Now().Add(time.Second)
	for {
		m.mu.Lock()
		n := len(m.subs)
		m.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscribers never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := m.PublishEvent(ctx, []byte("hello")); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case got := <-recv:
			if got != "hello" {
				t.Errorf("received %q", got)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed broadcast")
		}
	}
}

func TestMemoryEventsNoSubscribers(t *testing.T) {
	m := NewMemory()
	if err := m.PublishEvent(context.Background(), []byte("dropped")); err != nil {
		t.Fatalf("PublishEvent with no subscribers: %v", err)
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.PublishJob(context.Background(), []byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("PublishJob after Close = %v, want ErrUnavailable", err)
	}
	if err := m.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Ping after Close = %v, want ErrUnavailable", err)
	}
}

func TestJobsQueueArgs(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantMS  int64
		wantNil bool
	}{
		{name: "24h", timeout: 24 * time.Hour, wantMS: 86400000},
		{name: "zero disables", timeout: 0, wantNil: true},
		{name: "negative disables", timeout: -time.Second, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := jobsQueueArgs(tt.timeout)
			if tt.wantNil {
				if args != nil {
					t.Fatalf("expected nil args, got %v", args)
				}
				return
			}
			got, ok := args["x-consumer-timeout"].(int64)
			if !ok {
				t.Fatalf("x-consumer-timeout missing or wrong type: %v", args)
			}
			if got != tt.wantMS {
				t.Errorf("x-consumer-timeout = %d, want %d", got, tt.wantMS)
			}
		})
	}
}

func TestUnavailableWrap(t *testing.T) {
	err := unavailable(fmt.Errorf("dial tcp: refused"))
	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapped error does not match ErrUnavailable")
	}
}
