package push

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
)

// Subscriber reads updates from an SSE endpoint such as the record
// server's /api/events.
type Subscriber struct {
	URL string

	// Client is used for the streaming request. It must not set a
	// Timeout, which would cut the stream. Nil means a default client.
	Client *http.Client

	// ReconnectDelay is the pause before reconnecting after the stream
	// ends. Zero means one second.
	ReconnectDelay time.Duration

	Logger *log.Logger
}

// Run streams updates into out, reconnecting whenever the stream breaks,
// until ctx is cancelled. Frames that fail to decode are logged and skipped.
// A URL that can never connect is returned instead of retried.
func (s *Subscriber) Run(ctx context.Context, out chan<- Update) error {
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	for {
		err := s.stream(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs.Fatal(err) {
			return err
		}
		s.logger().Warn("push stream interrupted, reconnecting", "url", s.URL, "err", err, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Stream reads a single SSE connection until it ends.
func (s *Subscriber) Stream(ctx context.Context, out chan<- Update) error {
	return s.stream(ctx, out)
}

func (s *Subscriber) stream(ctx context.Context, out chan<- Update) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "push stream url %q", s.URL)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return errs.New(errs.ErrCodeInvalidConfig, "push stream url %q: scheme must be http or https", s.URL)
	}
	req.Header.Set("Accept", "text/event-stream")

	hc := s.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return errs.Wrap(errs.ErrCodeNetwork, err, "connect push stream")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.ErrCodeSourceUnavailable, "push stream: status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				s.deliver(ctx, []byte(data.String()), out)
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// comment or keep-alive
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrCodeNetwork, err, "read push stream")
	}
	return errs.New(errs.ErrCodeSourceUnavailable, "push stream closed")
}

func (s *Subscriber) deliver(ctx context.Context, frame []byte, out chan<- Update) {
	u, err := Decode(frame)
	if err != nil {
		s.logger().Warn("dropping malformed push frame", "err", err)
		return
	}
	select {
	case out <- u:
	case <-ctx.Done():
	}
}

func (s *Subscriber) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}
