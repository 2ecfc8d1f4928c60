// Package realtime fans stored messages out to subscribers of a conversation
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"gochat/internal/chat/models"
	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/metrics"
)

// Notifier is the realtime fan-out seen by the rest of the service.
type Notifier interface {
	common.MessagePublisher
	Subscribe(conversationID string, onInsert func(*models.Message)) *Subscription
}

// Hub is the in-process fan-out. Events are queued on a buffered channel
// and delivered by a fixed pool of workers; a full queue drops the event.
type Hub struct {
	subs         map[string]map[uint64]*Subscription
	nextID       uint64
	eventChannel chan common.MessageEvent
	workerPool   int
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	wg           sync.WaitGroup
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

var (
	_ Notifier       = (*Hub)(nil)
	_ common.Subject = (*Hub)(nil)
)

func NewHub(cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) *Hub {
	workers := cfg.Realtime.Workers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.Realtime.ChannelBufferSize
	if buffer <= 0 {
		buffer = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		subs:         make(map[string]map[uint64]*Subscription),
		eventChannel: make(chan common.MessageEvent, buffer),
		workerPool:   workers,
		ctx:          ctx,
		cancel:       cancel,
		metrics:      m,
		log:          log.With().Str("component", "realtime_hub").Logger(),
	}

	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go h.processEvents()
	}
	return h
}

// Subscribe registers onInsert for new messages in conversationID. The
// callback runs on a hub worker and must not block.
func (h *Hub) Subscribe(conversationID string, onInsert func(*models.Message)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:             h.nextID,
		conversationID: conversationID,
		onInsert:       onInsert,
		hub:            h,
	}
	room := h.subs[conversationID]
	if room == nil {
		room = make(map[uint64]*Subscription)
		h.subs[conversationID] = room
	}
	room[sub.id] = sub
	h.metrics.RealtimeSubscribers.Inc()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.subs[sub.conversationID]
	if _, ok := room[sub.id]; !ok {
		return
	}
	delete(room, sub.id)
	if len(room) == 0 {
		delete(h.subs, sub.conversationID)
	}
	h.metrics.RealtimeSubscribers.Dec()
}

// Publish queues msg for delivery to local subscribers.
func (h *Hub) Publish(_ context.Context, msg *models.Message) error {
	h.NotifyAsync(common.NewInsertEvent(msg))
	return nil
}

// Notify delivers event synchronously on the calling goroutine.
func (h *Hub) Notify(event common.MessageEvent) {
	if event.Type != common.EventInsert || event.Message == nil {
		return
	}

	h.mu.RLock()
	room := h.subs[event.ConversationID]
	subs := make([]*Subscription, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.deliver(event.Message) {
			h.metrics.RealtimeDeliveredTotal.Inc()
		}
	}
}

func (h *Hub) NotifyAsync(event common.MessageEvent) {
	select {
	case h.eventChannel <- event:
	case <-h.ctx.Done():
		return
	default:
		h.metrics.RealtimeDroppedTotal.WithLabelValues("hub_full").Inc()
		h.log.Warn().Str("conversation_id", event.ConversationID).Msg("realtime channel full, dropping event")
	}
}

func (h *Hub) processEvents() {
	defer h.wg.Done()

	for {
		select {
		case event := <-h.eventChannel:
			h.Notify(event)
		case <-h.ctx.Done():
			return
		}
	}
}

// SubscriberCount reports the live subscriptions for conversationID.
func (h *Hub) SubscriberCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

// Shutdown stops the workers. Queued events are discarded.
func (h *Hub) Shutdown() {
	h.cancel()
	h.wg.Wait()
	h.log.Info().Msg("realtime hub shutdown complete")
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id             uint64
	conversationID string
	onInsert       func(*models.Message)
	hub            *Hub
	cancelled      atomic.Bool
	once           sync.Once
}

func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Cancel stops delivery. Safe to call more than once and from any goroutine.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancelled.Store(true)
		s.hub.unsubscribe(s)
	})
}

func (s *Subscription) deliver(msg *models.Message) bool {
	if s.cancelled.Load() {
		return false
	}
	s.onInsert(msg)
	return true
}
