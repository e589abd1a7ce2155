package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/gateway/gatewaytest"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/transcript"
)

const testGuild = "guild-1"

var testRoles = map[domain.RoleKey]string{
	domain.RoleAdmin:           "role-admin",
	domain.RoleSeniorModerator: "role-senior",
	domain.RoleModerator:       "role-mod",
	domain.RoleHelper:          "role-helper",
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

// recordingScheduler captures deferred actions so tests can run them on demand.
type recordingScheduler struct {
	mu   sync.Mutex
	jobs []scheduled
}

func (r *recordingScheduler) schedule(delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, scheduled{delay: delay, fn: fn})
}

func (r *recordingScheduler) delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.delay)
	}
	return out
}

func (r *recordingScheduler) runAll() {
	r.mu.Lock()
	jobs := r.jobs
	r.jobs = nil
	r.mu.Unlock()
	for _, j := range jobs {
		j.fn()
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	gw        *gatewaytest.Fake
	store     *store.Store
	catalog   *catalog.Catalog
	scheduler *recordingScheduler
	recorder  *eventRecorder
	metrics   *observability.Metrics
	tickets   *TicketService
	feedback  *FeedbackService
	admin     *AdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	st, err := store.Open(backend, zap.NewNop())
	require.NoError(t, err)

	h := &harness{
		gw:        gatewaytest.New(),
		store:     st,
		catalog:   catalog.MustDefault(),
		scheduler: &recordingScheduler{},
		recorder:  &eventRecorder{},
		metrics:   observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	events.SubscribeAll(dispatcher, h.recorder.handle)

	h.tickets = NewTicketService(TicketDependencies{
		Store:      st,
		Catalog:    h.catalog,
		Gateway:    h.gw,
		Exporter:   transcript.NewExporter(h.gw, transcript.Config{Footer: "test"}, nil),
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Schedule:   h.scheduler.schedule,
	})
	h.feedback = NewFeedbackService(FeedbackDependencies{
		Store:      st,
		Catalog:    h.catalog,
		Gateway:    h.gw,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Schedule:   h.scheduler.schedule,
		Window:     10 * time.Minute,
	})
	h.admin = NewAdminService(AdminDependencies{
		Store:      st,
		Catalog:    h.catalog,
		Gateway:    h.gw,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
	})
	return h
}

// configure sets the staff roles and creates every category channel.
func (h *harness) configure(t *testing.T) {
	t.Helper()
	_, err := h.store.UpdateSettings(func(s *domain.Settings) error {
		for k, v := range testRoles {
			s.Roles[k] = v
		}
		for _, group := range h.catalog.Categories {
			s.Categories[group.Key] = h.gw.AddChannel(testGuild, "", group.Name, gateway.ChannelCategory)
		}
		return nil
	})
	require.NoError(t, err)
}

func (h *harness) create(t *testing.T, userID, ticketType string) domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.Create(context.Background(), draftFor(userID, ticketType))
	require.NoError(t, err)
	return ticket
}

func draftFor(userID, ticketType string) domain.TicketDraft {
	return domain.TicketDraft{
		Type:     ticketType,
		UserID:   userID,
		GuildID:  testGuild,
		Language: "en",
		FormData: domain.FormData{"suspect_name": "villain"},
	}
}

func lastMessage(t *testing.T, h *harness, channelID string) gatewaytest.FakeMessage {
	t.Helper()
	msgs := h.gw.LiveMessages(channelID)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}
