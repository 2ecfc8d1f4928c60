package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"gochat/internal/chat/models"
	"gochat/internal/chat/repository"
	"gochat/internal/identity"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token string) (*identity.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Principal), args.Error(1)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// memoryStore is an in-memory ChatRepository with a real unique pair key,
// used to exercise concurrent first contact.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	pairs         map[[2]string]string
	messages      []*models.Message
	seq           uint64
	createCalls   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: make(map[string]*models.Conversation),
		pairs:         make(map[[2]string]string),
	}
}

var _ repository.ChatRepository = (*memoryStore)(nil)

func (s *memoryStore) FindConversationByPair(_ context.Context, userA, userB string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, b := models.CanonicalPair(userA, userB)
	id, ok := s.pairs[[2]string{a, b}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s.conversations[id]
	return &c, nil
}

func (s *memoryStore) CreateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	key := [2]string{conv.ParticipantA, conv.ParticipantB}
	if _, ok := s.pairs[key]; ok {
		return repository.ErrDuplicate
	}
	c := *conv
	s.conversations[conv.ID] = &c
	s.pairs[key] = conv.ID
	return nil
}

func (s *memoryStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryStore) TouchConversation(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok && c.UpdatedAt.Before(at) {
		c.UpdatedAt = at
	}
	return nil
}

func (s *memoryStore) Save(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return repository.ErrNotFound
	}
	at := time.Now().UTC().Truncate(time.Millisecond)
	for _, m := range s.messages {
		if m.ConversationID == msg.ConversationID && m.CreatedAt.After(at) {
			at = m.CreatedAt
		}
	}
	s.seq++
	msg.ID = s.seq
	msg.CreatedAt = at
	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *memoryStore) FetchHistory(_ context.Context, id string) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, 0)
	for _, m := range s.messages {
		if m.ConversationID == id {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

// racingStore makes every caller miss on the first lookup so all of them
// go on to insert, the way truly simultaneous first contacts do.
type racingStore struct {
	*memoryStore
	barrier *sync.WaitGroup
	once    sync.Map
}

func (s *racingStore) FindConversationByPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	caller := ctx.Value(callerKey{})
	if _, seen := s.once.LoadOrStore(caller, true); !seen {
		s.barrier.Done()
		s.barrier.Wait()
		return nil, repository.ErrNotFound
	}
	return s.memoryStore.FindConversationByPair(ctx, userA, userB)
}

type callerKey struct{}
