package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"gochat/internal/chat/models"
	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/directory"
	"gochat/internal/identity"
	"gochat/internal/metrics"
)

// ChatService is what the HTTP layer calls. Every operation takes the raw
// bearer token and verifies it first, unless a Principal verified earlier in
// the same request is already on the context.
type ChatService interface {
	Authenticate(ctx context.Context, token string) (*identity.Principal, error)
	ListUsers(ctx context.Context, token string) ([]models.User, error)
	FetchHistory(ctx context.Context, token, peerUserID string) (*models.History, error)
	SendMessage(ctx context.Context, token, conversationID, body string) (*models.Message, error)
	AuthorizeSubscription(ctx context.Context, token, conversationID string) (*identity.Principal, error)
}

type chatService struct {
	repo      repository.ChatRepository
	resolver  *Resolver
	verifier  identity.Verifier
	directory directory.Directory
	publisher common.MessagePublisher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	maxMessageLength int
}

// Constructor used in DI/wire
func NewChatService(
	repo repository.ChatRepository,
	resolver *Resolver,
	verifier identity.Verifier,
	dir directory.Directory,
	publisher common.MessagePublisher,
	m *metrics.Metrics,
	cfg *config.Config,
	log zerolog.Logger,
) ChatService {
	return &chatService{
		repo:             repo,
		resolver:         resolver,
		verifier:         verifier,
		directory:        dir,
		publisher:        publisher,
		metrics:          m,
		log:              log.With().Str("component", "chat_service").Logger(),
		maxMessageLength: cfg.Chat.MaxMessageLength,
	}
}

func (s *chatService) Authenticate(ctx context.Context, token string) (*identity.Principal, error) {
	return s.verifier.Verify(ctx, token)
}

func (s *chatService) caller(ctx context.Context, token string) (*identity.Principal, error) {
	if p := identity.PrincipalFromContext(ctx); p != nil {
		return p, nil
	}
	return s.verifier.Verify(ctx, token)
}

func (s *chatService) ListUsers(ctx context.Context, token string) ([]models.User, error) {
	if _, err := s.caller(ctx, token); err != nil {
		return nil, err
	}
	return s.directory.ListUsers(ctx)
}

func (s *chatService) FetchHistory(ctx context.Context, token, peerUserID string) (*models.History, error) {
	principal, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := common.ValidateUserID(peerUserID); err != nil {
		return nil, err
	}
	if peerUserID == principal.ID {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", common.ErrInvalidRequest)
	}

	conv, err := s.resolver.Resolve(ctx, principal.ID, peerUserID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.FetchHistory(ctx, conv.ID)
	if err != nil {
		return nil, storageError("fetch history", err)
	}
	if messages == nil {
		messages = make([]*models.Message, 0)
	}

	return &models.History{Conversation: conv, Messages: messages}, nil
}

func (s *chatService) SendMessage(ctx context.Context, token, conversationID, body string) (*models.Message, error) {
	principal, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := common.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	if err := common.ValidateMessageBody(body, s.maxMessageLength); err != nil {
		return nil, err
	}

	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(principal.ID) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", common.ErrForbidden)
	}

	// the store assigns ID and CreatedAt
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       principal.ID,
		Body:           body,
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", common.ErrNotFound, conv.ID)
		}
		return nil, storageError("save message", err)
	}
	s.metrics.MessagesSentTotal.Inc()

	if err := s.repo.TouchConversation(ctx, conv.ID, msg.CreatedAt); err != nil {
		s.metrics.TouchFailuresTotal.Inc()
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("failed to touch conversation")
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.metrics.RealtimePublishFailTotal.Inc()
			s.log.Warn().Err(err).Str("conversation_id", conv.ID).Uint64("message_id", msg.ID).Msg("failed to publish message")
		}
	}

	return msg, nil
}

func (s *chatService) AuthorizeSubscription(ctx context.Context, token, conversationID string) (*identity.Principal, error) {
	principal, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := common.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}

	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(principal.ID) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", common.ErrForbidden)
	}
	return principal, nil
}

func (s *chatService) loadConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: conversation %s", common.ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, storageError("load conversation", err)
	}
	return conv, nil
}
