package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Subscription delivers INSERT events for one conversation until Cancel.
type Subscription struct {
	conversationID string
	conn           *websocket.Conn

	once      sync.Once
	cancelled atomic.Bool
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// Subscribe opens the realtime stream for conversationID. onInsert runs on
// the subscription's reader goroutine and must not block. Events may arrive
// out of order or more than once.
func (c *Client) Subscribe(ctx context.Context, conversationID string, onInsert func(Message)) (*Subscription, error) {
	session, err := c.session()
	if err != nil {
		return nil, err
	}

	endpoint, err := c.realtimeURL(conversationID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, c.apiHeaders(session))
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusSwitchingProtocols {
				return nil, newAPIError(resp)
			}
		}
		return nil, fmt.Errorf("chatclient: realtime dial: %w", err)
	}

	sub := &Subscription{
		conversationID: conversationID,
		conn:           conn,
		done:           make(chan struct{}),
	}
	go sub.readLoop(onInsert)

	c.log.Debug().Str("conversation_id", conversationID).Msg("realtime subscribed")
	return sub, nil
}

func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Cancel closes the stream. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancelled.Store(true)
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
	<-s.done
}

// Done is closed once the reader goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the stream ended, or nil after a normal close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) readLoop(onInsert func(Message)) {
	defer close(s.done)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.cancelled.Load() {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			_ = s.conn.Close()
			return
		}

		var ev realtimeEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if ev.Type != "INSERT" || ev.Message == nil || ev.Message.ConversationID != s.conversationID {
			continue
		}
		onInsert(*ev.Message)
	}
}

func (c *Client) realtimeURL(conversationID string) (string, error) {
	u, err := url.Parse(c.cfg.APIURL)
	if err != nil {
		return "", fmt.Errorf("chatclient: bad api url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/" + conversationID
	return u.String(), nil
}
