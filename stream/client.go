package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DefaultOpenTimeout bounds the wait for response headers.
	DefaultOpenTimeout = 60 * time.Second
	// FrameInterval is the drain period, one animation frame.
	FrameInterval = 16 * time.Millisecond

	readChunkSize = 4096
	maxErrorBody  = 4096
)

var (
	// ErrOpenTimeout is returned when no response arrives within the open
	// timeout.
	ErrOpenTimeout = errors.New("stream: no response before open timeout")
	// ErrIncomplete is returned when the body ends before the done frame.
	ErrIncomplete = errors.New("stream: connection closed before done")
)

// StatusError reports a non-2xx response to a chat request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stream: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("stream: server returned %d: %s", e.StatusCode, e.Body)
}

// Client posts chat requests and plays the streamed events back through a
// Scheduler.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	OpenTimeout time.Duration
	// FrameInterval overrides the drain period.
	FrameInterval time.Duration
}

// NewClient returns a client for the server at baseURL with default
// timeouts.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{},
		OpenTimeout:   DefaultOpenTimeout,
		FrameInterval: FrameInterval,
	}
}

// Stream sends req and delivers every event, the final DoneEvent included,
// to onEvent in order.
func (c *Client) Stream(ctx context.Context, req ChatRequest, onEvent func(Event)) error {
	return c.StreamWith(ctx, req, NewScheduler(onEvent))
}

// StreamWith is Stream with a caller-owned scheduler, so the caller can
// toggle its visibility while the response plays.
//
// It returns nil once the done frame has been delivered. When ctx is
// cancelled the queued events are flushed before ctx.Err() is returned.
// Transport failures and non-2xx responses are returned as errors after
// the events received so far were flushed.
func (c *Client) StreamWith(ctx context.Context, req ChatRequest, sched *Scheduler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.open(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- readFrames(resp.Body, sched)
	}()

	interval := c.FrameInterval
	if interval <= 0 {
		interval = FrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	finished := false
	for {
		select {
		case <-ctx.Done():
			sched.Cancel()
			resp.Body.Close()
			if !finished {
				<-readErr
			}
			return ctx.Err()

		case err := <-readErr:
			finished = true
			if err != nil {
				sched.Cancel()
				return fmt.Errorf("stream read failed: %w", err)
			}
			readErr = nil

		case <-ticker.C:
			sched.Drain()
			if finished && sched.Len() == 0 {
				return nil
			}
		}
	}
}

// open posts the request, aborting it when no response headers arrive
// within the open timeout.
func (c *Client) open(ctx context.Context, body []byte) (*http.Response, error) {
	timeout := c.OpenTimeout
	if timeout <= 0 {
		timeout = DefaultOpenTimeout
	}

	reqCtx, cancel := context.WithCancel(ctx)
	var timedOut atomic.Bool
	guard := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.BaseURL+ChatPath, bytes.NewReader(body))
	if err != nil {
		guard.Stop()
		cancel()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(httpReq)
	guard.Stop()
	if err != nil {
		cancel()
		switch {
		case timedOut.Load():
			return nil, fmt.Errorf("%w after %s", ErrOpenTimeout, timeout)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	// The request context must outlive open; release it with the body.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// readFrames decodes r into sched until the done frame or the end of r.
func readFrames(r io.Reader, sched *Scheduler) error {
	dec := NewDecoder()
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sched.Push(dec.Feed(buf[:n])...)
			if dec.Done() {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return ErrIncomplete
		}
		if err != nil {
			return err
		}
	}
}
