package push

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
)

func TestDecode(t *testing.T) {
	u, err := Decode([]byte(`{"layer":" logic ","mermaidSource":"A --> B"}`))
	if err != nil {
		t.Fatal(err)
	}
	if u.Layer != "logic" || u.MermaidSource != "A --> B" {
		t.Errorf("Decode = %+v", u)
	}
	if _, err := Decode([]byte(`{"layer":`)); !errs.Is(err, errs.ErrCodeMalformedPush) {
		t.Errorf("Decode(truncated) = %v, want MALFORMED_PUSH", err)
	}
}

func TestHubToSubscriber(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	out := make(chan Update, 1)
	sub := &Subscriber{URL: srv.URL}
	go func() { _ = sub.Stream(ctx, out) }()

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast(Update{Layer: "order", MermaidSource: "S1 --> S2"})

	select {
	case u := <-out:
		if u.Layer != "order" || u.MermaidSource != "S1 --> S2" {
			t.Errorf("received %+v", u)
		}
	case <-ctx.Done():
		t.Fatal("no update received")
	}
}

func TestSubscriberSkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
		fmt.Fprint(w, "data: {\"layer\":\"code\",\"mermaidSource\":\"x --> y\"}\n\n")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan Update, 4)
	sub := &Subscriber{URL: srv.URL}
	_ = sub.Stream(ctx, out)
	close(out)

	var got []Update
	for u := range out {
		got = append(got, u)
	}
	if len(got) != 1 || got[0].Layer != "code" {
		t.Errorf("updates = %+v, want the single valid frame", got)
	}
}

func TestSubscriberRunStopsOnBadURL(t *testing.T) {
	tests := []struct{ name, url string }{
		{"MissingScheme", "://no-scheme"},
		{"NotHTTP", "ftp://localhost/events"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			sub := &Subscriber{URL: tt.url, ReconnectDelay: time.Millisecond}
			err := sub.Run(ctx, make(chan Update))
			if !errs.Is(err, errs.ErrCodeInvalidConfig) {
				t.Errorf("Run() = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestSubscriberRunRetriesUnavailableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sub := &Subscriber{URL: srv.URL, ReconnectDelay: 5 * time.Millisecond}
	if err := sub.Run(ctx, make(chan Update)); err != context.DeadlineExceeded {
		t.Errorf("Run() = %v, want to keep retrying until the deadline", err)
	}
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Broadcast(Update{Layer: "function"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
