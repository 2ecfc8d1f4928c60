package chatclient

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// ChatView is the state behind one open conversation with a peer: the
// ordered message list, the unsent draft and the live subscription.
type ChatView struct {
	client       *Client
	peer         User
	conversation Conversation
	onChange     func([]Message)

	mu       sync.Mutex
	messages []Message
	draft    string
	sub      *Subscription
}

// OpenChat loads the history with peer and subscribes to new messages.
// onChange, if set, receives the full ordered list after every change.
func (c *Client) OpenChat(ctx context.Context, peer User, onChange func([]Message)) (*ChatView, error) {
	history, err := c.FetchHistory(ctx, peer.ID)
	if err != nil {
		return nil, err
	}

	v := &ChatView{
		client:       c,
		peer:         peer,
		conversation: history.Conversation,
		onChange:     onChange,
	}
	v.merge(history.Messages...)

	sub, err := c.Subscribe(ctx, history.Conversation.ID, func(m Message) {
		v.merge(m)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("conversation_id", history.Conversation.ID).Msg("realtime subscribe failed")
		return nil, err
	}

	v.mu.Lock()
	v.sub = sub
	v.mu.Unlock()
	return v, nil
}

func (v *ChatView) Peer() User {
	return v.peer
}

func (v *ChatView) Conversation() Conversation {
	return v.conversation
}

// Messages returns a copy ordered by CreatedAt then ID.
func (v *ChatView) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Message(nil), v.messages...)
}

func (v *ChatView) Draft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

func (v *ChatView) SetDraft(text string) {
	v.mu.Lock()
	v.draft = text
	v.mu.Unlock()
}

// Send posts the current draft. The draft is cleared only when the server
// accepted the message; on any error it is left as it was.
func (v *ChatView) Send(ctx context.Context) error {
	draft := v.Draft()
	if strings.TrimSpace(draft) == "" {
		return errors.New("chatclient: message is empty")
	}

	msg, err := v.client.SendMessage(ctx, v.conversation.ID, draft)
	if err != nil {
		v.client.log.Warn().Err(err).Str("conversation_id", v.conversation.ID).Msg("send failed")
		return err
	}

	v.mu.Lock()
	if v.draft == draft {
		v.draft = ""
	}
	v.mu.Unlock()

	v.merge(*msg)
	return nil
}

// Close cancels the realtime subscription.
func (v *ChatView) Close() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// merge adds messages that are not already present by ID and re-sorts.
func (v *ChatView) merge(msgs ...Message) {
	v.mu.Lock()
	before := len(v.messages)
	v.messages = lo.UniqBy(append(v.messages, msgs...), func(m Message) uint64 {
		return m.ID
	})
	changed := len(v.messages) != before
	if changed {
		sortMessages(v.messages)
	}
	snapshot := append([]Message(nil), v.messages...)
	v.mu.Unlock()

	if changed && v.onChange != nil {
		v.onChange(snapshot)
	}
}

func sortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
