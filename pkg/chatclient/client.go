package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"gochat/internal/chat/models"
)

// Client talks to the chat API and to the identity platform on behalf of
// the session held in its SessionStore.
type Client struct {
	cfg        Config
	httpClient *http.Client
	dialer     *websocket.Dialer
	sessions   *SessionStore
	log        zerolog.Logger
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithSessionStore shares a store between clients or with the caller's UI.
func WithSessionStore(store *SessionStore) Option {
	return func(c *Client) {
		if store != nil {
			c.sessions = store
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.PlatformURL = strings.TrimRight(cfg.PlatformURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		sessions:   NewSessionStore(),
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "chatclient").Logger()
	return c, nil
}

func (c *Client) Sessions() *SessionStore {
	return c.sessions
}

// SignIn exchanges email and password for a session with the platform's
// password grant and stores it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	endpoint := c.cfg.PlatformURL + "/auth/v1/token?grant_type=password"
	payload := map[string]string{"email": email, "password": password}

	var tok tokenResponse
	if err := c.do(ctx, http.MethodPost, endpoint, c.platformHeaders(""), payload, &tok); err != nil {
		c.log.Warn().Err(err).Str("email", email).Msg("sign in failed")
		return nil, err
	}

	session := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    c.expiry(tok),
		User: User{
			ID:          tok.User.ID,
			Email:       tok.User.Email,
			DisplayName: models.DisplayNameFromMetadata(tok.User.UserMetadata, tok.User.Email),
		},
	}
	c.sessions.Set(session)
	c.log.Info().Str("user_id", session.User.ID).Msg("signed in")
	return c.sessions.Get(), nil
}

// SignOut revokes the session on the platform and clears it locally. The
// local session is cleared even when the platform call fails.
func (c *Client) SignOut(ctx context.Context) error {
	session := c.sessions.Get()
	if session == nil {
		return nil
	}
	defer c.sessions.Clear()

	endpoint := c.cfg.PlatformURL + "/auth/v1/logout?scope=global"
	if err := c.do(ctx, http.MethodPost, endpoint, c.platformHeaders(session.AccessToken), nil, nil); err != nil {
		c.log.Warn().Err(err).Msg("sign out failed on platform")
		return err
	}
	return nil
}

// ListUsers returns every registered user except the signed-in one.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	session, err := c.session()
	if err != nil {
		return nil, err
	}

	var users []User
	if err := c.do(ctx, http.MethodGet, c.cfg.APIURL+"/users", c.apiHeaders(session), nil, &users); err != nil {
		return nil, err
	}
	return lo.Filter(users, func(u User, _ int) bool {
		return u.ID != session.User.ID
	}), nil
}

// FetchHistory resolves the conversation with peerID and returns it with
// its messages oldest first.
func (c *Client) FetchHistory(ctx context.Context, peerID string) (*History, error) {
	session, err := c.session()
	if err != nil {
		return nil, err
	}

	endpoint := c.cfg.APIURL + "/messages/" + url.PathEscape(peerID)
	var history History
	if err := c.do(ctx, http.MethodGet, endpoint, c.apiHeaders(session), nil, &history); err != nil {
		return nil, err
	}
	if history.Messages == nil {
		history.Messages = []Message{}
	}
	return &history, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID, body string) (*Message, error) {
	session, err := c.session()
	if err != nil {
		return nil, err
	}

	req := sendMessageRequest{ConversationID: conversationID, Message: body}
	var msg Message
	if err := c.do(ctx, http.MethodPost, c.cfg.APIURL+"/messages", c.apiHeaders(session), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) session() (*Session, error) {
	session := c.sessions.Get()
	if session == nil || session.AccessToken == "" {
		return nil, ErrNotSignedIn
	}
	if session.Expired(c.now()) {
		return nil, fmt.Errorf("%w: session expired", ErrNotSignedIn)
	}
	return session, nil
}

func (c *Client) apiHeaders(session *Session) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+session.AccessToken)
	return h
}

func (c *Client) platformHeaders(accessToken string) http.Header {
	h := http.Header{}
	if c.cfg.AnonKey != "" {
		h.Set("apikey", c.cfg.AnonKey)
	}
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}
	return h
}

func (c *Client) expiry(tok tokenResponse) time.Time {
	if tok.ExpiresAt > 0 {
		return time.Unix(tok.ExpiresAt, 0)
	}
	if tok.ExpiresIn > 0 {
		return c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

func (c *Client) do(ctx context.Context, method, endpoint string, headers http.Header, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("chatclient: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("chatclient: build request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatclient: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chatclient: decode response: %w", err)
	}
	return nil
}
