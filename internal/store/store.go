package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

type ticketsDocument struct {
	Tickets []domain.Ticket `json:"tickets"`
	Counter int             `json:"counter"`
}

type feedbackDocument struct {
	Feedback []domain.Feedback `json:"feedback"`
	Counter  int               `json:"counter"`
}

// Store owns every persisted entity: tickets, feedback and the configuration
// document. It is constructed once at start-up and passed to the components that
// need it. All mutations are read-modify-write under one lock and leave memory
// untouched when the write fails.
type Store struct {
	mu       sync.RWMutex
	backend  Backend
	logger   *zap.Logger
	now      func() time.Time
	tickets  ticketsDocument
	feedback feedbackDocument
	settings domain.Settings
	index    *Index

	ticketIDs   *Allocator
	feedbackIDs *Allocator
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads all documents from backend. A missing or corrupt document is
// replaced by an empty default which is written back immediately.
func Open(backend Backend, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadOrInit(DocSettings, &s.settings, func() { s.settings = domain.DefaultSettings() }); err != nil {
		return nil, err
	}
	s.normalizeSettings()
	if err := s.loadOrInit(DocTickets, &s.tickets, func() { s.tickets = ticketsDocument{} }); err != nil {
		return nil, err
	}
	if err := s.loadOrInit(DocFeedback, &s.feedback, func() { s.feedback = feedbackDocument{} }); err != nil {
		return nil, err
	}

	if s.tickets.Tickets == nil {
		s.tickets.Tickets = []domain.Ticket{}
	}
	if s.feedback.Feedback == nil {
		s.feedback.Feedback = []domain.Feedback{}
	}
	for _, t := range s.tickets.Tickets {
		if t.ID > s.tickets.Counter {
			logger.Warn("ticket counter behind stored ids; advancing",
				zap.Int("counter", s.tickets.Counter), zap.Int("ticket_id", t.ID))
			s.tickets.Counter = t.ID
		}
	}

	s.index = BuildIndex(s.tickets.Tickets)
	s.ticketIDs = NewAllocator(s.tickets.Counter)
	s.feedbackIDs = NewAllocator(s.feedback.Counter)

	logger.Info("store loaded",
		zap.Int("tickets", len(s.tickets.Tickets)),
		zap.Int("ticket_counter", s.tickets.Counter),
		zap.Int("feedback", len(s.feedback.Feedback)))
	return s, nil
}

func (s *Store) loadOrInit(name string, v any, reset func()) error {
	err := s.backend.Load(name, v)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDocumentMissing) && !errors.Is(err, ErrDocumentCorrupt) {
		return apperrors.NewStorageFailure(err)
	}
	if errors.Is(err, ErrDocumentCorrupt) {
		s.logger.Warn("document corrupt; starting from defaults", zap.String("document", name), zap.Error(err))
	}
	reset()
	if err := s.backend.Save(name, v); err != nil {
		return apperrors.NewStorageFailure(err)
	}
	return nil
}

func (s *Store) normalizeSettings() {
	def := domain.DefaultSettings()
	if s.settings.Roles == nil {
		s.settings.Roles = def.Roles
	}
	if s.settings.Categories == nil {
		s.settings.Categories = def.Categories
	}
	if s.settings.Channels == nil {
		s.settings.Channels = def.Channels
	}
	if s.settings.Limits.MaxTicketsPerUser <= 0 {
		s.settings.Limits.MaxTicketsPerUser = def.Limits.MaxTicketsPerUser
	}
}

func (s *Store) saveTickets() error {
	if err := s.backend.Save(DocTickets, &s.tickets); err != nil {
		return apperrors.NewStorageFailure(err)
	}
	return nil
}

func (s *Store) saveFeedback() error {
	if err := s.backend.Save(DocFeedback, &s.feedback); err != nil {
		return apperrors.NewStorageFailure(err)
	}
	return nil
}

func (s *Store) saveSettings() error {
	if err := s.backend.Save(DocSettings, &s.settings); err != nil {
		return apperrors.NewStorageFailure(err)
	}
	return nil
}

// Check verifies the ticket document is still readable.
func (s *Store) Check() error {
	var probe ticketsDocument
	if err := s.backend.Load(DocTickets, &probe); err != nil {
		return apperrors.NewStorageFailure(err)
	}
	return nil
}

// Flush rewrites all documents. Called once at shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.saveSettings(), s.saveTickets(), s.saveFeedback())
}

// ---- configuration document ----

// Settings returns a copy of the configuration document.
func (s *Store) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// UpdateSettings applies fn to a copy of the document and persists it wholesale.
func (s *Store) UpdateSettings(fn func(*domain.Settings) error) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings.Clone()
	if err := fn(&next); err != nil {
		return domain.Settings{}, err
	}
	prev := s.settings
	s.settings = next
	if err := s.saveSettings(); err != nil {
		s.settings = prev
		return domain.Settings{}, err
	}
	return next.Clone(), nil
}

// ---- ticket reads ----

// Tickets returns copies of all ticket records in store order.
func (s *Store) Tickets() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ticket, len(s.tickets.Tickets))
	for i := range s.tickets.Tickets {
		out[i] = s.tickets.Tickets[i].Clone()
	}
	return out
}

// TicketByID looks a ticket up by id.
func (s *Store) TicketByID(id int) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos := s.positionOf(id)
	if pos < 0 {
		return domain.Ticket{}, false
	}
	return s.tickets.Tickets[pos].Clone(), true
}

// TicketByChannel looks a ticket up through the channel index.
func (s *Store) TicketByChannel(channelID string) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index.ByChannel(channelID)
	if !ok {
		return domain.Ticket{}, false
	}
	return s.tickets.Tickets[pos].Clone(), true
}

// OpenTickets returns userID's open tickets.
func (s *Store) OpenTickets(userID string) []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	positions := s.index.OpenByUser(userID)
	out := make([]domain.Ticket, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.tickets.Tickets[pos].Clone())
	}
	return out
}

// Counter returns the highest ticket id ever allocated.
func (s *Store) Counter() int {
	return s.ticketIDs.Current()
}

func (s *Store) positionOf(id int) int {
	for i := range s.tickets.Tickets {
		if s.tickets.Tickets[i].ID == id {
			return i
		}
	}
	return -1
}

// ---- ticket mutations ----

// CreateTicket allocates the next id and persists an open ticket with no channel.
// When maxOpen > 0 and the requester already has maxOpen open tickets the call
// fails with LIMIT_REACHED and no id is consumed.
func (s *Store) CreateTicket(ctx context.Context, draft domain.TicketDraft, maxOpen int) (domain.Ticket, error) {
	var created domain.Ticket
	_, err := s.ticketIDs.Next(ctx, func(id int) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if count := s.index.OpenCount(draft.UserID); maxOpen > 0 && count >= maxOpen {
			return apperrors.NewLimitReached(count, maxOpen)
		}

		t := domain.Ticket{
			ID:        id,
			Type:      draft.Type,
			UserID:    draft.UserID,
			GuildID:   draft.GuildID,
			Language:  draft.Language,
			Server:    draft.Server,
			FormData:  draft.FormData,
			Status:    domain.TicketStatusOpen,
			CreatedAt: s.now().UTC(),
		}
		prevCounter := s.tickets.Counter
		s.tickets.Tickets = append(s.tickets.Tickets, t)
		s.tickets.Counter = id
		if err := s.saveTickets(); err != nil {
			s.tickets.Tickets = s.tickets.Tickets[:len(s.tickets.Tickets)-1]
			s.tickets.Counter = prevCounter
			return err
		}
		pos := len(s.tickets.Tickets) - 1
		s.index.OnAppended(pos, &s.tickets.Tickets[pos])
		created = s.tickets.Tickets[pos].Clone()
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return created, nil
}

// mutate applies fn to the ticket at pos and persists; on a failed write the
// record is restored. fn returns a domain error to abort without writing.
func (s *Store) mutate(pos int, fn func(t *domain.Ticket) error) (domain.Ticket, error) {
	t := &s.tickets.Tickets[pos]
	prev := t.Clone()
	if err := fn(t); err != nil {
		*t = prev
		return domain.Ticket{}, err
	}
	if err := s.saveTickets(); err != nil {
		*t = prev
		return domain.Ticket{}, err
	}
	s.index.OnChannelAssigned(pos, prev.Channel(), t.Channel())
	s.index.OnStatusChange(pos, t.UserID, prev.Status, t.Status)
	return t.Clone(), nil
}

func (s *Store) byChannelLocked(channelID string) (int, error) {
	pos, ok := s.index.ByChannel(channelID)
	if !ok {
		return -1, apperrors.NewTicketNotFound(channelID)
	}
	return pos, nil
}

// AssignChannel binds a provisioned channel to the ticket.
func (s *Store) AssignChannel(ticketID int, channelID string) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.positionOf(ticketID)
	if pos < 0 {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.mutate(pos, func(t *domain.Ticket) error {
		t.ChannelID = &channelID
		return nil
	})
}

// Claim records claimant as the owner of the open ticket bound to channelID.
// The first claim wins.
func (s *Store) Claim(channelID, claimant string) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := s.byChannelLocked(channelID)
	if err != nil {
		return domain.Ticket{}, err
	}
	return s.mutate(pos, func(t *domain.Ticket) error {
		if !t.IsOpen() {
			return apperrors.NewTicketNotOpen(t.ID)
		}
		if t.ClaimedBy != nil {
			return apperrors.NewAlreadyClaimed(t.ID, *t.ClaimedBy)
		}
		at := s.now().UTC()
		t.ClaimedBy = &claimant
		t.ClaimedAt = &at
		return nil
	})
}

// Close marks the ticket closed with closer, reason and time.
func (s *Store) Close(channelID, closer, reason string) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := s.byChannelLocked(channelID)
	if err != nil {
		return domain.Ticket{}, err
	}
	return s.mutate(pos, func(t *domain.Ticket) error {
		at := s.now().UTC()
		t.Status = domain.TicketStatusClosed
		t.ClosedBy = &closer
		t.CloseReason = &reason
		t.ClosedAt = &at
		return nil
	})
}

// Reopen flips the ticket back to open and clears all closure metadata.
func (s *Store) Reopen(channelID string) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := s.byChannelLocked(channelID)
	if err != nil {
		return domain.Ticket{}, err
	}
	return s.mutate(pos, func(t *domain.Ticket) error {
		t.Status = domain.TicketStatusOpen
		t.ClosedBy = nil
		t.CloseReason = nil
		t.ClosedAt = nil
		return nil
	})
}

// SetRating stores a satisfaction rating on the ticket.
func (s *Store) SetRating(ticketID, rating int) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.positionOf(ticketID)
	if pos < 0 {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.mutate(pos, func(t *domain.Ticket) error {
		t.Rating = &rating
		return nil
	})
}

// RemoveTicket purges a ticket record. Its id is never reused.
func (s *Store) RemoveTicket(ticketID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.positionOf(ticketID)
	if pos < 0 {
		return false, nil
	}
	prev := s.tickets.Tickets
	next := make([]domain.Ticket, 0, len(prev)-1)
	next = append(next, prev[:pos]...)
	next = append(next, prev[pos+1:]...)
	s.tickets.Tickets = next
	if err := s.saveTickets(); err != nil {
		s.tickets.Tickets = prev
		return false, err
	}
	s.index.Rebuild(s.tickets.Tickets)
	return true, nil
}

// RemoveInvalid drops open tickets whose channel is not in valid, including open
// tickets that never got a channel. Closed tickets are kept. Returns the number
// removed.
func (s *Store) RemoveInvalid(valid map[string]bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tickets.Tickets
	next := make([]domain.Ticket, 0, len(prev))
	for _, t := range prev {
		if !t.IsOpen() {
			next = append(next, t)
			continue
		}
		if ch := t.Channel(); ch != "" && valid[ch] {
			next = append(next, t)
		}
	}
	removed := len(prev) - len(next)
	if removed == 0 {
		return 0, nil
	}
	s.tickets.Tickets = next
	if err := s.saveTickets(); err != nil {
		s.tickets.Tickets = prev
		return 0, err
	}
	s.index.Rebuild(s.tickets.Tickets)
	return removed, nil
}

// ResetTickets deletes every ticket record and sets the counter back to zero.
func (s *Store) ResetTickets(ctx context.Context) error {
	return s.ticketIDs.Reset(ctx, 0, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		prev := s.tickets
		s.tickets = ticketsDocument{Tickets: []domain.Ticket{}}
		if err := s.saveTickets(); err != nil {
			s.tickets = prev
			return err
		}
		s.index.Rebuild(s.tickets.Tickets)
		return nil
	})
}

// ---- feedback ----

// CreateFeedback appends an immutable feedback record under its own counter.
func (s *Store) CreateFeedback(ctx context.Context, fb domain.Feedback) (domain.Feedback, error) {
	var created domain.Feedback
	_, err := s.feedbackIDs.Next(ctx, func(id int) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		fb.ID = id
		fb.CreatedAt = s.now().UTC()
		prev := s.feedback
		s.feedback.Feedback = append(s.feedback.Feedback, fb)
		s.feedback.Counter = id
		if err := s.saveFeedback(); err != nil {
			s.feedback.Feedback = prev.Feedback
			s.feedback.Counter = prev.Counter
			return err
		}
		created = fb
		return nil
	})
	if err != nil {
		return domain.Feedback{}, err
	}
	return created, nil
}

// FeedbackByModerator lists feedback left for one staff member.
func (s *Store) FeedbackByModerator(moderatorID string) []domain.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Feedback
	for _, fb := range s.feedback.Feedback {
		if fb.ModeratorID == moderatorID {
			out = append(out, fb)
		}
	}
	return out
}

// ModeratorStats counts positive and negative feedback for one staff member.
func (s *Store) ModeratorStats(moderatorID string) domain.ModeratorStats {
	stats := domain.ModeratorStats{ModeratorID: moderatorID}
	for _, fb := range s.FeedbackByModerator(moderatorID) {
		switch fb.Rating {
		case domain.FeedbackPositive:
			stats.Positive++
		case domain.FeedbackNegative:
			stats.Negative++
		}
	}
	return stats
}
