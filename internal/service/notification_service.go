package service

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventPublisher fans serialized events out to other processes.
type EventPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// HistoryRecorder appends audit entries.
type HistoryRecorder interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
}

// NotificationService reacts to lifecycle events: it logs them, fans them out
// and records an audit trail. Publisher and History are optional.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  EventPublisher
	history    HistoryRecorder
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Publisher  EventPublisher
	History    HistoryRecorder
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		publisher:  deps.Publisher,
		history:    deps.History,
		logger:     deps.Logger,
	}
}

// RegisterHandlers subscribes to every event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	events.SubscribeAll(n.dispatcher, n.handle)
}

var changeTypes = map[events.EventType]domain.TicketChangeType{
	events.EventTicketCreated:      domain.ChangeTypeCreated,
	events.EventTicketClaimed:      domain.ChangeTypeClaimed,
	events.EventTicketClosed:       domain.ChangeTypeClosed,
	events.EventTicketReopened:     domain.ChangeTypeReopened,
	events.EventTicketDeleted:      domain.ChangeTypeDeleted,
	events.EventTicketRenamed:      domain.ChangeTypeRenamed,
	events.EventTicketRated:        domain.ChangeTypeRated,
	events.EventTicketParticipants: domain.ChangeTypeParticipants,
	events.EventFeedbackSubmitted:  domain.ChangeTypeFeedback,
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.Int("ticket_id", event.TicketID),
		zap.String("channel_id", event.ChannelID),
		zap.String("actor_type", string(event.Actor.Type)),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload))

	if n.publisher != nil {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := n.publisher.Publish(ctx, data); err != nil {
			n.logger.Warn("event fan-out failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	change, ok := changeTypes[event.Type]
	if n.history == nil || !ok || event.TicketID == 0 {
		return nil
	}
	entry := historyEntry(event, change)
	if err := n.history.Create(ctx, &entry); err != nil {
		n.logger.Warn("history append failed", zap.String("event_id", event.ID), zap.Error(err))
	}
	return nil
}

func historyEntry(event events.Event, change domain.TicketChangeType) domain.TicketHistory {
	entry := domain.TicketHistory{
		EventID:       event.ID,
		TicketID:      event.TicketID,
		ChangedByType: string(event.Actor.Type),
		ChangeType:    change,
		CreatedAt:     event.Timestamp,
	}
	if event.ChannelID != "" {
		ch := event.ChannelID
		entry.ChannelID = &ch
	}
	if event.Actor.ID != "" {
		id := event.Actor.ID
		entry.ChangedByID = &id
	}
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			var value map[string]any
			if json.Unmarshal(data, &value) == nil {
				entry.NewValue = value
			}
		}
	}
	return entry
}
