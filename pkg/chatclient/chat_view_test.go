package chatclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(msgs []Message) []uint64 {
	out := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestChatView_MergeDedupesAndSorts(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var changes int
	v := &ChatView{onChange: func([]Message) { changes++ }}

	v.merge(
		Message{ID: 3, CreatedAt: base.Add(time.Second)},
		Message{ID: 2, CreatedAt: base},
		Message{ID: 1, CreatedAt: base},
	)
	assert.Equal(t, []uint64{1, 2, 3}, ids(v.Messages()))
	assert.Equal(t, 1, changes)

	// a repeated push changes nothing
	v.merge(Message{ID: 2, CreatedAt: base})
	assert.Equal(t, []uint64{1, 2, 3}, ids(v.Messages()))
	assert.Equal(t, 1, changes)

	// a late push lands in created_at order
	v.merge(Message{ID: 4, CreatedAt: base.Add(-time.Second)})
	assert.Equal(t, []uint64{4, 1, 2, 3}, ids(v.Messages()))
	assert.Equal(t, 2, changes)
}

func TestChatView_SendKeepsDraftOnFailure(t *testing.T) {
	b := newFakeBackend(t)
	c := signedIn(t, b)

	v, err := c.OpenChat(context.Background(), User{ID: "u2"}, nil)
	require.NoError(t, err)
	defer v.Close()
	b.socket(t)

	b.mu.Lock()
	b.failSend = true
	b.mu.Unlock()

	v.SetDraft("hello")
	err = v.Send(context.Background())
	require.Error(t, err)
	assert.Equal(t, "hello", v.Draft())
	assert.Empty(t, v.Messages())

	b.mu.Lock()
	b.failSend = false
	b.mu.Unlock()

	require.NoError(t, v.Send(context.Background()))
	assert.Empty(t, v.Draft())
	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Body)
}

func TestChatView_EmptyDraftIsRejected(t *testing.T) {
	v := &ChatView{}
	v.SetDraft("   ")
	assert.Error(t, v.Send(context.Background()))
	assert.Equal(t, "   ", v.Draft())
}

func TestChatView_OpenChatLoadsHistoryAndReceivesPushes(t *testing.T) {
	b := newFakeBackend(t)
	base := time.Now().UTC().Add(-time.Minute)
	b.seed(
		Message{ID: 1, ConversationID: "conv-1", SenderID: "u2", Body: "hi", CreatedAt: base},
		Message{ID: 2, ConversationID: "conv-1", SenderID: "u1", Body: "hey", CreatedAt: base.Add(time.Second)},
	)
	c := signedIn(t, b)

	updates := make(chan []Message, 4)
	v, err := c.OpenChat(context.Background(), User{ID: "u2", DisplayName: "Bob"}, func(m []Message) {
		updates <- m
	})
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, "conv-1", v.Conversation().ID)
	assert.Equal(t, "Bob", v.Peer().DisplayName)
	assert.Equal(t, []uint64{1, 2}, ids(v.Messages()))
	<-updates

	server := b.socket(t)
	push := func(m Message) {
		require.NoError(t, server.WriteJSON(map[string]interface{}{
			"type":            "INSERT",
			"conversation_id": "conv-1",
			"message":         m,
		}))
	}
	push(Message{ID: 2, ConversationID: "conv-1", CreatedAt: base.Add(time.Second)})
	push(Message{ID: 3, ConversationID: "conv-1", Body: "new", CreatedAt: base.Add(2 * time.Second)})

	select {
	case got := <-updates:
		assert.Equal(t, []uint64{1, 2, 3}, ids(got))
	case <-time.After(2 * time.Second):
		t.Fatal("push not merged")
	}
}
