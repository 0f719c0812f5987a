package cad

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// FeedEventType names a server push message.
type FeedEventType string

const (
	// FeedSync means bulk dispatch data changed and a sync is due.
	FeedSync FeedEventType = "sync"
	// FeedCallsign means a single resource changed on the server.
	FeedCallsign FeedEventType = "callsign"
)

// FeedEvent is a change hint pushed by the dispatch server.
type FeedEvent struct {
	Type     FeedEventType `json:"type"`
	Callsign string        `json:"callsign,omitempty"`
}

// Feed subscribes to the dispatch server's live change feed.
type Feed struct {
	URL    string
	Dialer *websocket.Dialer
	Log    logrus.FieldLogger

	// MinBackoff and MaxBackoff bound the reconnect delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewFeed derives the feed endpoint from the API client's base URL.
func NewFeed(c *Client, log logrus.FieldLogger) *Feed {
	u := c.BaseURL()
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/feed"
	return &Feed{URL: u.String(), Log: log}
}

// Run reads feed events and passes them to handle until ctx is cancelled,
// reconnecting after failures.
func (f *Feed) Run(ctx context.Context, handle func(FeedEvent)) error {
	if _, err := url.Parse(f.URL); err != nil {
		return fmt.Errorf("parse feed url: %w", err)
	}
	minBackoff, maxBackoff := f.MinBackoff, f.MaxBackoff
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = 30 * time.Second
	}

	delay := minBackoff
	for {
		connected, err := f.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = minBackoff
		}
		if f.Log != nil {
			f.Log.WithError(err).WithField("retry_in", delay).Warn("live feed disconnected")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

// session runs one connection. connected reports whether the dial succeeded.
func (f *Feed) session(ctx context.Context, handle func(FeedEvent)) (connected bool, err error) {
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("User-Agent", defaultUserAgent)
	header.Set("X-Request-ID", uuid.NewString())

	conn, _, err := dialer.DialContext(ctx, f.URL, header)
	if err != nil {
		return false, fmt.Errorf("dial feed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	if f.Log != nil {
		f.Log.WithField("url", f.URL).Info("live feed connected")
	}
	for {
		var evt FeedEvent
		if err := conn.ReadJSON(&evt); err != nil {
			return true, fmt.Errorf("read feed: %w", err)
		}
		switch evt.Type {
		case FeedSync, FeedCallsign:
			handle(evt)
		default:
			if f.Log != nil {
				f.Log.WithField("type", evt.Type).Debug("ignoring unknown feed event")
			}
		}
	}
}
