package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"influencer-attribution-api/internal/logger"
	"influencer-attribution-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventLinkCreated is emitted when a referral link is saved.
	EventLinkCreated EventType = "link.created"
	// EventLinkDeleted is emitted when a saved referral link is removed.
	EventLinkDeleted EventType = "link.deleted"
	// EventLeadSaved is emitted after a registration step or import is persisted.
	EventLeadSaved EventType = "lead.saved"
	// EventFirstTouchCaptured is emitted the first time a visitor is attributed.
	EventFirstTouchCaptured EventType = "first_touch.captured"
)

// AllTypes lists every event type the service publishes.
var AllTypes = []EventType{EventLinkCreated, EventLinkDeleted, EventLeadSaved, EventFirstTouchCaptured}

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

type LinkCreatedData struct {
	Link models.ReferralLink
}

type LinkDeletedData struct {
	ID string
}

// LeadSavedData carries the stored rows. Count differs from len(Leads)
// only for bulk imports, which do not echo rows back.
type LeadSavedData struct {
	Leads []models.RegistrationEvent
	Count int
}

type FirstTouchCapturedData struct {
	VisitorID   string
	Attribution models.AttributionTuple
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager fans events out to subscribed handlers.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	wg       sync.WaitGroup
	log      *zap.Logger
}

// NewManager creates a new event manager.
func NewManager(enabled bool, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		log:      log,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish runs every handler for eventType in its own goroutine. Handlers
// get a context detached from the request so they outlive it.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	if !m.enabled || len(m.handlers[eventType]) == 0 {
		m.mu.RUnlock()
		return
	}
	handlers := m.handlers[eventType]
	// Register with the WaitGroup before Shutdown can take the write lock.
	m.wg.Add(len(handlers))
	m.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	hctx := logger.WithLogger(context.WithoutCancel(ctx), logger.Ctx(ctx))
	for _, handler := range handlers {
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(hctx, event); err != nil {
				m.log.Warn("event handler failed",
					zap.String("event", string(event.Type)),
					zap.Error(err),
				)
			}
		}(handler)
	}
}

func (m *Manager) PublishLinkCreated(ctx context.Context, link models.ReferralLink) {
	m.Publish(ctx, EventLinkCreated, LinkCreatedData{Link: link})
}

func (m *Manager) PublishLinkDeleted(ctx context.Context, id string) {
	m.Publish(ctx, EventLinkDeleted, LinkDeletedData{ID: id})
}

func (m *Manager) PublishLeadSaved(ctx context.Context, leads []models.RegistrationEvent, count int) {
	m.Publish(ctx, EventLeadSaved, LeadSavedData{Leads: leads, Count: count})
}

func (m *Manager) PublishFirstTouchCaptured(ctx context.Context, visitorID string, t models.AttributionTuple) {
	m.Publish(ctx, EventFirstTouchCaptured, FirstTouchCapturedData{VisitorID: visitorID, Attribution: t})
}

// Wait blocks until all in-flight handlers return.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops accepting events and waits for running handlers. Publish
// calls that return after Shutdown holds the lock start no handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}

// AuditHandler writes one structured log line per event.
func AuditHandler(log *zap.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		fields := []zap.Field{
			zap.String("event", string(event.Type)),
			zap.Time("at", event.Timestamp),
		}

		switch d := event.Data.(type) {
		case LinkCreatedData:
			fields = append(fields,
				zap.String("link_id", d.Link.ID),
				zap.String("influencer", d.Link.InfluencerName),
				zap.String("platform", string(d.Link.Platform)),
			)
		case LinkDeletedData:
			fields = append(fields, zap.String("link_id", d.ID))
		case LeadSavedData:
			fields = append(fields, zap.Int("count", d.Count))
			if len(d.Leads) == 1 {
				fields = append(fields,
					zap.String("lead_id", d.Leads[0].ID),
					zap.String("status", string(d.Leads[0].Status)),
					zap.String("utm_content", d.Leads[0].Attribution.Content),
				)
			}
		case FirstTouchCapturedData:
			fields = append(fields,
				zap.String("visitor_id", d.VisitorID),
				zap.String("utm_source", d.Attribution.Source),
				zap.String("utm_content", d.Attribution.Content),
			)
		}

		log.Info("audit", fields...)
		return nil
	}
}

// SubscribeAll registers h for every published event type.
func (m *Manager) SubscribeAll(h Handler) {
	for _, t := range AllTypes {
		m.Subscribe(t, h)
	}
}
