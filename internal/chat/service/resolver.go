package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gochat/internal/chat/models"
	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/metrics"
)

// Resolver maps an unordered pair of users to their single conversation,
// creating it on first contact. The store's unique pair index is what keeps
// concurrent first contacts from producing two rows.
type Resolver struct {
	repo    repository.ChatRepository
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewResolver(repo repository.ChatRepository, m *metrics.Metrics, log zerolog.Logger) *Resolver {
	return &Resolver{
		repo:    repo,
		metrics: m,
		log:     log.With().Str("component", "resolver").Logger(),
	}
}

func (r *Resolver) Resolve(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, fmt.Errorf("%w: both participants are required", common.ErrInvalidRequest)
	}
	if userA == userB {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", common.ErrInvalidRequest)
	}

	conv, err := r.repo.FindConversationByPair(ctx, userA, userB)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageError("find conversation", err)
	}

	a, b := models.CanonicalPair(userA, userB)
	now := time.Now().UTC()
	conv = &models.Conversation{
		ID:           uuid.NewString(),
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = r.repo.CreateConversation(ctx, conv)
	if err == nil {
		r.metrics.ConversationsCreatedTotal.Inc()
		r.log.Debug().Str("conversation_id", conv.ID).Msg("conversation created")
		return conv, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, storageError("create conversation", err)
	}

	// lost the race to a concurrent first contact; the winner's row is the conversation
	r.metrics.ResolverRacesTotal.Inc()
	winner, err := r.repo.FindConversationByPair(ctx, userA, userB)
	if err != nil {
		return nil, storageError("re-fetch conversation", err)
	}
	return winner, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrStorageUnavailable, op, err)
}
