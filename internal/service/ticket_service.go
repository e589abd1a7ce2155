package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	closedPrefix  = "closed-"
	claimedPrefix = "claimed-"
)

// TicketStore is the part of the store the lifecycle manager mutates.
type TicketStore interface {
	Settings() domain.Settings
	Tickets() []domain.Ticket
	TicketByID(id int) (domain.Ticket, bool)
	TicketByChannel(channelID string) (domain.Ticket, bool)
	OpenTickets(userID string) []domain.Ticket
	CreateTicket(ctx context.Context, draft domain.TicketDraft, maxOpen int) (domain.Ticket, error)
	AssignChannel(ticketID int, channelID string) (domain.Ticket, error)
	Claim(channelID, claimant string) (domain.Ticket, error)
	Close(channelID, closer, reason string) (domain.Ticket, error)
	Reopen(channelID string) (domain.Ticket, error)
	SetRating(ticketID, rating int) (domain.Ticket, error)
	RemoveTicket(ticketID int) (bool, error)
	RemoveInvalid(valid map[string]bool) (int, error)
}

// TicketService is the lifecycle manager: it drives tickets through the
// store and mirrors every transition onto the ticket's channel.
type TicketService struct {
	store      TicketStore
	catalog    *catalog.Catalog
	gateway    gateway.Gateway
	exporter   gateway.TranscriptExporter
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	schedule   Scheduler
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      TicketStore
	Catalog    *catalog.Catalog
	Gateway    gateway.Gateway
	Exporter   gateway.TranscriptExporter
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Schedule runs deferred actions; defaults to AfterFunc.
	Schedule Scheduler
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Schedule == nil {
		deps.Schedule = AfterFunc
	}
	return &TicketService{
		store:      deps.Store,
		catalog:    deps.Catalog,
		gateway:    deps.Gateway,
		exporter:   deps.Exporter,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		schedule:   deps.Schedule,
	}
}

// Ticket returns the ticket with the given id.
func (s *TicketService) Ticket(id int) (domain.Ticket, error) {
	t, ok := s.store.TicketByID(id)
	if !ok {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return t, nil
}

// TicketByChannel returns the ticket bound to channelID.
func (s *TicketService) TicketByChannel(channelID string) (domain.Ticket, error) {
	t, ok := s.store.TicketByChannel(channelID)
	if !ok {
		return domain.Ticket{}, apperrors.NewTicketNotFound(channelID)
	}
	return t, nil
}

// Tickets lists every ticket record, optionally only those in status.
func (s *TicketService) Tickets(status domain.TicketStatus) []domain.Ticket {
	all := s.store.Tickets()
	if status == "" {
		return all
	}
	out := make([]domain.Ticket, 0, len(all))
	for _, t := range all {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// Create opens a ticket: it enforces the requester's open-ticket limit,
// persists the record, provisions the private channel and binds it. A
// provisioning failure leaves the persisted ticket without a channel; the
// startup prune removes it.
func (s *TicketService) Create(ctx context.Context, draft domain.TicketDraft) (ticket domain.Ticket, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.create", start, err) }(time.Now())

	tt, ok := s.catalog.TicketType(draft.Type)
	if !ok {
		return domain.Ticket{}, apperrors.NewNotFound("ticket type", map[string]any{"ticket_type": draft.Type})
	}
	draft.Language = s.catalog.Lang(draft.Language)

	settings := s.store.Settings()
	max := settings.Limits.MaxTicketsPerUser
	if count := len(s.store.OpenTickets(draft.UserID)); max > 0 && count >= max {
		return domain.Ticket{}, apperrors.NewLimitReached(count, max)
	}
	parentID := settings.Category(tt.Category)
	if parentID == "" {
		return domain.Ticket{}, apperrors.NewCategoryNotConfigured(string(tt.Category))
	}

	ticket, err = s.store.CreateTicket(ctx, draft, max)
	if err != nil {
		return domain.Ticket{}, err
	}
	log := s.logger.With(zap.Int("ticket_id", ticket.ID), zap.String("user_id", ticket.UserID))

	ch, err := s.gateway.CreateChannel(ctx, gateway.ChannelSpec{
		GuildID:    draft.GuildID,
		ParentID:   parentID,
		Name:       truncateName(tt.ChannelPrefix() + "-" + strconv.Itoa(ticket.ID)),
		Topic:      "Ticket by " + userMention(draft.UserID) + " | Type: " + tt.ID,
		Kind:       gateway.ChannelText,
		Overwrites: ticketOverwrites(draft.GuildID, draft.UserID, settings.RoleIDs(tt.AccessRoles)),
	})
	if err != nil {
		log.Warn("channel provisioning failed; ticket left without channel", zap.Error(err))
		return domain.Ticket{}, apperrors.NewGatewayFailure("create channel", err)
	}

	ticket, err = s.store.AssignChannel(ticket.ID, ch.ID)
	if err != nil {
		log.Error("bind channel failed", zap.String("channel_id", ch.ID), zap.Error(err))
		return domain.Ticket{}, err
	}
	log = log.With(zap.String("channel_id", ch.ID))

	_, sendErr := s.gateway.SendMessage(ctx, ch.ID, introMessage(s.catalog, tt, ticket))
	bestEffort(log, "intro message", sendErr)
	s.pingRoles(ctx, log, ch.ID, settings.RoleIDs(tt.PingRoles), settings.Limits.PingDeleteDelay)

	log.Info("ticket created", zap.String("type", ticket.Type))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ChannelID: ch.ID,
		Actor:     userActor(ticket.UserID),
		Payload: events.TicketCreatedPayload{
			Type:     ticket.Type,
			Language: ticket.Language,
			Server:   ticket.Server,
		},
	})
	return ticket, nil
}

// pingRoles sends a transient role mention that removes itself after delayMs.
func (s *TicketService) pingRoles(ctx context.Context, log *zap.Logger, channelID string, roleIDs []string, delayMs int) {
	if len(roleIDs) == 0 {
		return
	}
	msgID, err := s.gateway.SendMessage(ctx, channelID, gateway.Message{Content: roleMentions(roleIDs)})
	if err != nil {
		bestEffort(log, "role ping", err)
		return
	}
	s.schedule(time.Duration(delayMs)*time.Millisecond, func() {
		bestEffort(log, "delete role ping", s.gateway.DeleteMessage(context.Background(), channelID, msgID))
	})
}

func ticketOverwrites(guildID, userID string, accessRoleIDs []string) []gateway.Overwrite {
	ows := []gateway.Overwrite{
		{TargetID: guildID, Kind: gateway.TargetRole, Deny: gateway.PermViewChannel},
		{TargetID: userID, Kind: gateway.TargetMember, Allow: gateway.ParticipantPermissions},
	}
	for _, id := range accessRoleIDs {
		ows = append(ows, gateway.Overwrite{TargetID: id, Kind: gateway.TargetRole, Allow: gateway.StaffPermissions})
	}
	return ows
}

// Claim makes claimant the owner of the ticket. Only the first claim
// succeeds; a rejected claim touches nothing.
func (s *TicketService) Claim(ctx context.Context, channelID, claimant string) (ticket domain.Ticket, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.claim", start, err) }(time.Now())

	ticket, err = s.store.Claim(channelID, claimant)
	if err != nil {
		return domain.Ticket{}, err
	}
	log := s.ticketLogger(ticket)

	s.prefixChannelName(ctx, log, channelID, claimedPrefix)
	_, sendErr := s.gateway.SendMessage(ctx, channelID, claimedMessage(s.catalog, ticket.Language, claimant))
	bestEffort(log, "claimed notice", sendErr)

	log.Info("ticket claimed", zap.String("claimed_by", claimant))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketClaimed,
		TicketID:  ticket.ID,
		ChannelID: channelID,
		Actor:     staffActor(claimant),
		Payload:   events.TicketClaimedPayload{ClaimedBy: claimant},
	})
	return ticket, nil
}

// Close marks the ticket closed and posts the closed-ticket controls. The
// channel survives until it is deleted.
func (s *TicketService) Close(ctx context.Context, channelID, closer, reason string) (ticket domain.Ticket, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.close", start, err) }(time.Now())

	ticket, err = s.store.Close(channelID, closer, strings.TrimSpace(reason))
	if err != nil {
		return domain.Ticket{}, err
	}
	log := s.ticketLogger(ticket)

	s.prefixChannelName(ctx, log, channelID, closedPrefix)
	_, sendErr := s.gateway.SendMessage(ctx, channelID, closedControls(s.catalog, ticket))
	bestEffort(log, "closed controls", sendErr)

	log.Info("ticket closed", zap.String("closed_by", closer))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketClosed,
		TicketID:  ticket.ID,
		ChannelID: channelID,
		Actor:     actorFor(ticket, closer),
		Payload:   events.TicketClosedPayload{ClosedBy: closer, Reason: ptrValue(ticket.CloseReason)},
	})
	return ticket, nil
}

// Reopen flips a closed ticket back to open. controlsMessageID, when set, is
// the closed-ticket controls message to remove.
func (s *TicketService) Reopen(ctx context.Context, channelID, actor, controlsMessageID string) (ticket domain.Ticket, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.reopen", start, err) }(time.Now())

	ticket, err = s.store.Reopen(channelID)
	if err != nil {
		return domain.Ticket{}, err
	}
	log := s.ticketLogger(ticket)

	if ch, fetchErr := s.gateway.FetchChannel(ctx, channelID); fetchErr != nil {
		bestEffort(log, "fetch channel", fetchErr)
	} else if name := strings.TrimPrefix(ch.Name, closedPrefix); name != ch.Name {
		bestEffort(log, "rename channel", s.gateway.SetChannelName(ctx, channelID, name))
	}
	if controlsMessageID != "" {
		bestEffort(log, "delete closed controls", s.gateway.DeleteMessage(ctx, channelID, controlsMessageID))
	}

	log.Info("ticket reopened", zap.String("actor", actor))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketReopened,
		TicketID:  ticket.ID,
		ChannelID: channelID,
		Actor:     actorFor(ticket, actor),
	})
	return ticket, nil
}

// Delete destroys the ticket's channel. The record survives until a prune or
// purge removes it.
func (s *TicketService) Delete(ctx context.Context, channelID, deleter string) (ticket domain.Ticket, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.delete", start, err) }(time.Now())

	ticket, err = s.TicketByChannel(channelID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := s.gateway.DeleteChannel(ctx, channelID); err != nil {
		return domain.Ticket{}, apperrors.NewGatewayFailure("delete channel", err)
	}

	s.ticketLogger(ticket).Info("ticket channel deleted", zap.String("deleted_by", deleter))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketDeleted,
		TicketID:  ticket.ID,
		ChannelID: channelID,
		Actor:     actorFor(ticket, deleter),
	})
	return ticket, nil
}

// ScheduleDelete announces the deletion in the channel and deletes it after
// the configured delay. The returned duration is that delay.
func (s *TicketService) ScheduleDelete(ctx context.Context, channelID, deleter string) (domain.Ticket, time.Duration, error) {
	ticket, err := s.TicketByChannel(channelID)
	if err != nil {
		return domain.Ticket{}, 0, err
	}
	delay := time.Duration(s.store.Settings().Limits.TicketDeleteDelay) * time.Millisecond
	log := s.ticketLogger(ticket)

	_, sendErr := s.gateway.SendMessage(ctx, channelID, closingNotice(s.catalog, ticket.Language, int(delay/time.Second)))
	bestEffort(log, "closing notice", sendErr)

	s.schedule(delay, func() {
		if _, err := s.Delete(context.Background(), channelID, deleter); err != nil {
			log.Warn("scheduled delete failed", zap.Error(err))
		}
	})
	return ticket, delay, nil
}

// Rename sanitizes newName and applies it to the ticket's channel.
func (s *TicketService) Rename(ctx context.Context, channelID, actor, newName string) (name string, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.rename", start, err) }(time.Now())

	ticket, err := s.TicketByChannel(channelID)
	if err != nil {
		return "", err
	}
	name = SanitizeChannelName(strings.TrimSpace(newName))
	if strings.Trim(name, "-") == "" {
		return "", apperrors.NewValidationError("channel name is empty after sanitizing", map[string]any{"name": newName})
	}
	if err := s.gateway.SetChannelName(ctx, channelID, name); err != nil {
		return "", apperrors.NewGatewayFailure("rename channel", err)
	}

	s.ticketLogger(ticket).Info("ticket renamed", zap.String("name", name))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketRenamed,
		TicketID:  ticket.ID,
		ChannelID: channelID,
		Actor:     actorFor(ticket, actor),
		Payload:   events.TicketRenamedPayload{Name: name},
	})
	return name, nil
}

// AddParticipant lets userID see and write in the ticket channel.
func (s *TicketService) AddParticipant(ctx context.Context, channelID, actor, userID string) (err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.add_participant", start, err) }(time.Now())

	ticket, err := s.TicketByChannel(channelID)
	if err != nil {
		return err
	}
	ow := gateway.Overwrite{TargetID: userID, Kind: gateway.TargetMember, Allow: gateway.ParticipantPermissions}
	if err := s.gateway.SetPermission(ctx, channelID, ow); err != nil {
		return apperrors.NewGatewayFailure("set permission", err)
	}
	s.participantsChanged(ctx, ticket, actor, userID, true)
	return nil
}

// RemoveParticipant revokes userID's overwrite on the ticket channel.
func (s *TicketService) RemoveParticipant(ctx context.Context, channelID, actor, userID string) (err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.remove_participant", start, err) }(time.Now())

	ticket, err := s.TicketByChannel(channelID)
	if err != nil {
		return err
	}
	if err := s.gateway.RemovePermission(ctx, channelID, userID); err != nil {
		return apperrors.NewGatewayFailure("remove permission", err)
	}
	s.participantsChanged(ctx, ticket, actor, userID, false)
	return nil
}

func (s *TicketService) participantsChanged(ctx context.Context, ticket domain.Ticket, actor, userID string, added bool) {
	s.ticketLogger(ticket).Info("ticket participants changed", zap.String("participant", userID), zap.Bool("added", added))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketParticipants,
		TicketID:  ticket.ID,
		ChannelID: ticket.Channel(),
		Actor:     actorFor(ticket, actor),
		Payload:   events.ParticipantsChangedPayload{UserID: userID, Added: added},
	})
}

// Transcript exports the channel history. It fails with NOT_FOUND when the
// channel has no messages.
func (s *TicketService) Transcript(ctx context.Context, channelID string) (artifact *gateway.Artifact, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.transcript", start, err) }(time.Now())

	if _, err := s.TicketByChannel(channelID); err != nil {
		return nil, err
	}
	return s.export(ctx, channelID)
}

// ArchiveTranscript exports the channel history and posts it to the ticket
// log channel. Posting is best-effort; an unset log channel skips it.
func (s *TicketService) ArchiveTranscript(ctx context.Context, channelID string) (artifact *gateway.Artifact, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.archive_transcript", start, err) }(time.Now())

	ticket, err := s.TicketByChannel(channelID)
	if err != nil {
		return nil, err
	}
	artifact, err = s.export(ctx, channelID)
	if err != nil {
		return nil, err
	}

	log := s.ticketLogger(ticket)
	logChannel := s.store.Settings().Channel(domain.ChannelTicketLogs)
	if logChannel == "" {
		log.Warn("ticket log channel not configured; transcript not archived")
		return artifact, nil
	}
	_, sendErr := s.gateway.SendMessage(ctx, logChannel, transcriptLogMessage(s.catalog, ticket, artifact))
	bestEffort(log, "archive transcript", sendErr, zap.String("log_channel_id", logChannel))
	return artifact, nil
}

func (s *TicketService) export(ctx context.Context, channelID string) (*gateway.Artifact, error) {
	artifact, err := s.exporter.Export(ctx, channelID)
	if err != nil {
		return nil, apperrors.NewGatewayFailure("export transcript", err)
	}
	if artifact == nil {
		return nil, apperrors.NewNotFound("transcript messages", map[string]any{"channel_id": channelID})
	}
	return artifact, nil
}

// CallSenior pings the senior staff roles in the ticket channel.
func (s *TicketService) CallSenior(ctx context.Context, channelID string) (err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.call_senior", start, err) }(time.Now())

	ticket, err := s.TicketByChannel(channelID)
	if err != nil {
		return err
	}
	mentions := roleMentions(s.store.Settings().RoleIDs(domain.SeniorRoles))
	content := strings.TrimLeft(mentions+"\n"+s.catalog.Text(ticket.Language, "ticket.pingStaff"), "\n")
	if _, err := s.gateway.SendMessage(ctx, channelID, gateway.Message{Content: content}); err != nil {
		return apperrors.NewGatewayFailure("send message", err)
	}
	s.ticketLogger(ticket).Info("senior staff called")
	return nil
}

// Rate stores a 1 to 5 satisfaction rating.
func (s *TicketService) Rate(ctx context.Context, ticketID, rating int) (ticket domain.Ticket, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.rate", start, err) }(time.Now())

	if rating < 1 || rating > 5 {
		return domain.Ticket{}, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	ticket, err = s.store.SetRating(ticketID, rating)
	if err != nil {
		return domain.Ticket{}, err
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketRated,
		TicketID:  ticket.ID,
		ChannelID: ticket.Channel(),
		Actor:     userActor(ticket.UserID),
		Payload:   events.TicketRatedPayload{Rating: rating},
	})
	return ticket, nil
}

// Prune removes open tickets whose channel is gone or was never attached.
// Channels that cannot be checked are kept.
func (s *TicketService) Prune(ctx context.Context) (removed int, err error) {
	defer func(start time.Time) { observe(s.metrics, "ticket.prune", start, err) }(time.Now())

	valid := make(map[string]bool)
	for _, t := range s.store.Tickets() {
		ch := t.Channel()
		if !t.IsOpen() || ch == "" {
			continue
		}
		exists, err := gateway.ChannelExists(ctx, s.gateway, ch)
		if err != nil {
			s.logger.Warn("channel check failed; keeping ticket",
				zap.Int("ticket_id", t.ID), zap.String("channel_id", ch), zap.Error(err))
			exists = true
		}
		valid[ch] = exists
	}

	removed, err = s.store.RemoveInvalid(valid)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("pruned tickets without channel", zap.Int("removed", removed))
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:    events.EventTicketsPruned,
			Actor:   systemActor(),
			Payload: events.TicketsPrunedPayload{Removed: removed},
		})
	}
	return removed, nil
}

// Purge removes one ticket record. Its id is never reused.
func (s *TicketService) Purge(ctx context.Context, ticketID int) error {
	ticket, err := s.Ticket(ticketID)
	if err != nil {
		return err
	}
	if _, err := s.store.RemoveTicket(ticketID); err != nil {
		return err
	}
	s.ticketLogger(ticket).Info("ticket purged")
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketDeleted,
		TicketID:  ticket.ID,
		ChannelID: ticket.Channel(),
		Actor:     systemActor(),
	})
	return nil
}

// prefixChannelName prepends prefix to the channel name. Failures are logged
// and ignored.
func (s *TicketService) prefixChannelName(ctx context.Context, log *zap.Logger, channelID, prefix string) {
	ch, err := s.gateway.FetchChannel(ctx, channelID)
	if err != nil {
		bestEffort(log, "fetch channel", err)
		return
	}
	bestEffort(log, "rename channel", s.gateway.SetChannelName(ctx, channelID, truncateName(prefix+ch.Name)))
}

func (s *TicketService) ticketLogger(t domain.Ticket) *zap.Logger {
	return s.logger.With(zap.Int("ticket_id", t.ID), zap.String("channel_id", t.Channel()))
}

// actorFor labels id as the requester or as staff.
func actorFor(t domain.Ticket, id string) events.Actor {
	if id == t.UserID {
		return userActor(id)
	}
	return staffActor(id)
}
