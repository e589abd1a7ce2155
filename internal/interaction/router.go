package interaction

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/wizard"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	colorPrimary = 0x5865F2
	colorWarning = 0xFEE75C

	maxCloseReason = 500
)

// Flow is the creation wizard.
type Flow interface {
	Advance(ctx context.Context, actor wizard.Actor, token string, form domain.FormData) (wizard.Step, error)
}

// Lifecycle is the ticket lifecycle manager.
type Lifecycle interface {
	Ticket(id int) (domain.Ticket, error)
	TicketByChannel(channelID string) (domain.Ticket, error)
	Claim(ctx context.Context, channelID, claimant string) (domain.Ticket, error)
	Close(ctx context.Context, channelID, closer, reason string) (domain.Ticket, error)
	Reopen(ctx context.Context, channelID, actor, controlsMessageID string) (domain.Ticket, error)
	ScheduleDelete(ctx context.Context, channelID, deleter string) (domain.Ticket, time.Duration, error)
	Rename(ctx context.Context, channelID, actor, newName string) (string, error)
	AddParticipant(ctx context.Context, channelID, actor, userID string) error
	RemoveParticipant(ctx context.Context, channelID, actor, userID string) error
	Transcript(ctx context.Context, channelID string) (*gateway.Artifact, error)
	ArchiveTranscript(ctx context.Context, channelID string) (*gateway.Artifact, error)
	CallSenior(ctx context.Context, channelID string) error
}

// Feedback collects staff ratings.
type Feedback interface {
	RequestFeedback(ctx context.Context, channelID, staffID, targetUserID string) (string, error)
	SubmitFeedback(ctx context.Context, in service.FeedbackInput) (domain.Feedback, error)
}

// Admin runs the guild-wide administrative operations.
type Admin interface {
	Setup(ctx context.Context, guildID string) (service.SetupReport, error)
	Reset(ctx context.Context) error
	Teardown(ctx context.Context, guildID string) (service.TeardownReport, error)
}

// Router maps interactions onto the wizard and the services.
type Router struct {
	flow     Flow
	tickets  Lifecycle
	feedback Feedback
	admin    Admin
	auth     *Authorizer
	catalog  *catalog.Catalog
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// Dependencies bundles collaborators for the router.
type Dependencies struct {
	Flow       Flow
	Tickets    Lifecycle
	Feedback   Feedback
	Admin      Admin
	Authorizer *Authorizer
	Catalog    *catalog.Catalog
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewRouter constructs the router.
func NewRouter(deps Dependencies) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Router{
		flow:     deps.Flow,
		tickets:  deps.Tickets,
		feedback: deps.Feedback,
		admin:    deps.Admin,
		auth:     deps.Authorizer,
		catalog:  deps.Catalog,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

var errUnknownInteraction = errors.New("interaction: unknown token")

// Handle answers one interaction. Failures become a localized ephemeral reply.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	resp, err := r.dispatch(ctx, req)
	r.record(req, start, err)
	if err != nil {
		return r.failure(req, err)
	}
	return resp
}

func (r *Router) dispatch(ctx context.Context, req Request) (Response, error) {
	switch req.Kind {
	case KindCommand:
		return r.command(ctx, req)
	case KindComponent, KindModalSubmit:
		if wizard.IsWizardToken(req.Token) {
			return r.wizardStep(ctx, req)
		}
		if ctl, ok := service.ParseControl(req.Token); ok {
			return r.control(ctx, req, ctl)
		}
	}
	return Response{}, errUnknownInteraction
}

func (r *Router) record(req Request, start time.Time, err error) {
	outcome := observability.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, errUnknownInteraction), apperrors.IsFatal(err):
		outcome = observability.OutcomeFailed
	default:
		outcome = observability.OutcomeRejected
	}
	op := "interaction.component"
	switch req.Kind {
	case KindModalSubmit:
		op = "interaction.modal"
	case KindCommand:
		op = "interaction.command." + req.Token
	}
	r.metrics.RecordOperation(op, outcome, time.Since(start))
}

// ---- creation flow ----

func (r *Router) wizardStep(ctx context.Context, req Request) (Response, error) {
	actor := wizard.Actor{UserID: req.Member.ID, GuildID: req.GuildID}
	step, err := r.flow.Advance(ctx, actor, req.Token, domain.FormData(req.Fields))
	if err != nil {
		return Response{}, err
	}
	if step.Form != nil {
		return Response{Modal: &Modal{Token: step.Form.Token, Title: step.Form.Title, Fields: step.Form.Fields}}, nil
	}

	var msg gateway.Message
	switch {
	case step.Ticket != nil:
		msg.Content = step.Description
	case step.Limit != nil:
		msg.Embeds = []gateway.Embed{{Title: step.Title, Description: step.Description, Color: colorWarning}}
	default:
		msg.Embeds = []gateway.Embed{{Title: step.Title, Description: step.Description, Color: colorPrimary}}
		for _, opt := range step.Options {
			msg.Buttons = append(msg.Buttons, gateway.Button{Label: opt.Label, Token: opt.Token, Style: gateway.ButtonSecondary})
		}
	}
	// the panel is public; every later step edits the private prompt
	if req.Token == wizard.TokenStart {
		return reply(msg), nil
	}
	return Response{Update: &msg}, nil
}

// ---- ticket controls ----

func (r *Router) control(ctx context.Context, req Request, ctl service.Control) (Response, error) {
	switch ctl.Kind {
	case service.ControlFeedback:
		return r.feedbackForm(req, ctl)
	case service.ControlFeedbackSubmit:
		return r.submitFeedback(ctx, req, ctl)
	case service.ControlFeedbackDisabled:
		return replyText(r.catalog.Text(r.language(req), "feedback.expired")), nil
	}

	t, err := r.tickets.TicketByChannel(req.ChannelID)
	if err != nil {
		return Response{}, err
	}
	if ctl.TicketID != 0 && ctl.TicketID != t.ID {
		return Response{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ctl.TicketID})
	}
	lang := t.Language

	switch ctl.Kind {
	case service.ControlClose:
		if !r.auth.CanManage(req.Member, t) {
			return Response{}, apperrors.NewForbidden("close requires the ticket owner or staff")
		}
		return Response{Modal: &Modal{
			Token: service.TokenCloseModal,
			Title: r.catalog.Text(lang, "close.modal.title"),
			Fields: []wizard.Field{{
				ID:        service.FieldCloseReason,
				Label:     r.catalog.Text(lang, "close.modal.reason"),
				Paragraph: true,
				MaxLength: maxCloseReason,
			}},
		}}, nil

	case service.ControlCloseSubmit:
		if !r.auth.CanManage(req.Member, t) {
			return Response{}, apperrors.NewForbidden("close requires the ticket owner or staff")
		}
		if _, err := r.tickets.Close(ctx, req.ChannelID, req.Member.ID, req.Fields[service.FieldCloseReason]); err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "ticket.closed.title")), nil

	case service.ControlClaim:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("claim requires staff")
		}
		if _, err := r.tickets.Claim(ctx, req.ChannelID, req.Member.ID); err != nil {
			return Response{}, err
		}
		return Response{Controls: service.TicketButtons(r.catalog, lang, true)}, nil

	case service.ControlTranscript:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("transcript requires staff")
		}
		artifact, err := r.tickets.Transcript(ctx, req.ChannelID)
		if err != nil {
			return Response{}, err
		}
		return reply(gateway.Message{
			Content: r.catalog.Text(lang, "transcript.generated"),
			Files:   []gateway.File{artifact.File},
		}), nil

	case service.ControlCallSenior:
		if err := r.tickets.CallSenior(ctx, req.ChannelID); err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "ticket.seniorCalled")), nil

	case service.ControlReopen:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("reopen requires staff")
		}
		if _, err := r.tickets.Reopen(ctx, req.ChannelID, req.Member.ID, req.MessageID); err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "ticket.reopened")), nil

	case service.ControlTranscriptSave:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("transcript requires staff")
		}
		if _, err := r.tickets.ArchiveTranscript(ctx, req.ChannelID); err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "transcript.saved")), nil

	case service.ControlDelete:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("delete requires staff")
		}
		_, delay, err := r.tickets.ScheduleDelete(ctx, req.ChannelID, req.Member.ID)
		if err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "ticket.closing.description", "seconds", strconv.Itoa(int(delay/time.Second)))), nil
	}
	return Response{}, errUnknownInteraction
}

func (r *Router) feedbackForm(req Request, ctl service.Control) (Response, error) {
	t, err := r.tickets.Ticket(ctl.TicketID)
	if err != nil {
		return Response{}, err
	}
	if req.Member.ID != t.UserID {
		return Response{}, apperrors.NewNotTicketCreator(t.ID, req.Member.ID)
	}
	return Response{Modal: &Modal{
		Token: service.FeedbackModalToken(ctl.Rating, ctl.StaffID, ctl.TicketID),
		Title: r.catalog.Text(t.Language, "feedback.modal.title"),
		Fields: []wizard.Field{{
			ID:        service.FieldFeedbackComment,
			Label:     r.catalog.Text(t.Language, "feedback.modal.comment"),
			Paragraph: true,
			MaxLength: service.MaxFeedbackComment,
		}},
	}}, nil
}

func (r *Router) submitFeedback(ctx context.Context, req Request, ctl service.Control) (Response, error) {
	fb, err := r.feedback.SubmitFeedback(ctx, service.FeedbackInput{
		TicketID:        ctl.TicketID,
		ModeratorID:     ctl.StaffID,
		Rating:          ctl.Rating,
		Comment:         req.Fields[service.FieldFeedbackComment],
		RaterID:         req.Member.ID,
		RaterName:       req.Member.Name,
		ChannelID:       req.ChannelID,
		PromptMessageID: req.MessageID,
	})
	if err != nil {
		return Response{}, err
	}
	lang := r.language(req)
	rating := "+rep"
	if fb.Rating == domain.FeedbackNegative {
		rating = "-rep"
	}
	return reply(gateway.Message{Embeds: []gateway.Embed{{
		Title:       r.catalog.Text(lang, "feedback.thanks.title"),
		Description: r.catalog.Text(lang, "feedback.thanks.description", "rating", rating),
		Color:       colorPrimary,
	}}}), nil
}

// ---- slash commands ----

func (r *Router) command(ctx context.Context, req Request) (Response, error) {
	switch req.Token {
	case CommandSetup, CommandReset, CommandTeardown:
		return r.adminCommand(ctx, req)
	}

	t, err := r.tickets.TicketByChannel(req.ChannelID)
	if err != nil {
		return Response{}, err
	}
	lang := t.Language
	user := req.Options[OptionUser]

	switch req.Token {
	case CommandAdd:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("add requires staff")
		}
		if err := r.tickets.AddParticipant(ctx, req.ChannelID, req.Member.ID, user); err != nil {
			return Response{}, err
		}
		return publicText(r.catalog.Text(lang, "ticket.userAdded", "user", user)), nil

	case CommandRemove:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("remove requires staff")
		}
		if err := r.tickets.RemoveParticipant(ctx, req.ChannelID, req.Member.ID, user); err != nil {
			return Response{}, err
		}
		return publicText(r.catalog.Text(lang, "ticket.userRemoved", "user", user)), nil

	case CommandClose:
		if !r.auth.CanManage(req.Member, t) {
			return Response{}, apperrors.NewForbidden("close requires the ticket owner or staff")
		}
		if _, err := r.tickets.Close(ctx, req.ChannelID, req.Member.ID, req.Options[OptionReason]); err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "ticket.closed.title")), nil

	case CommandRename:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("rename requires staff")
		}
		name, err := r.tickets.Rename(ctx, req.ChannelID, req.Member.ID, req.Options[OptionName])
		if err != nil {
			return Response{}, err
		}
		return publicText(r.catalog.Text(lang, "ticket.renamed", "name", name)), nil

	case CommandReady:
		if !r.auth.IsStaff(req.Member) {
			return Response{}, apperrors.NewForbidden("ready requires staff")
		}
		if _, err := r.feedback.RequestFeedback(ctx, req.ChannelID, req.Member.ID, user); err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "feedback.request.sent")), nil
	}
	return Response{}, errUnknownInteraction
}

func (r *Router) adminCommand(ctx context.Context, req Request) (Response, error) {
	if !r.auth.IsAdmin(req.Member) {
		return Response{}, apperrors.NewForbidden("administrator required")
	}
	lang := catalog.DefaultLanguage

	switch req.Token {
	case CommandSetup:
		report, err := r.admin.Setup(ctx, req.GuildID)
		if err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "admin.setup.done",
			"created", strconv.Itoa(report.CategoriesCreated),
			"failed", strconv.Itoa(report.CategoriesFailed),
			"panel", strconv.FormatBool(report.PanelPosted))), nil

	case CommandReset:
		if err := r.admin.Reset(ctx); err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "admin.reset.done")), nil

	case CommandTeardown:
		report, err := r.admin.Teardown(ctx, req.GuildID)
		if err != nil {
			return Response{}, err
		}
		return replyText(r.catalog.Text(lang, "admin.teardown.done",
			"channels", strconv.Itoa(report.ChannelsDeleted),
			"categories", strconv.Itoa(report.CategoriesDeleted))), nil
	}
	return Response{}, errUnknownInteraction
}

// ---- failures ----

// language picks the language to answer in: the one chosen in the creation
// flow, then the ticket's, then the default.
func (r *Router) language(req Request) string {
	if wizard.IsWizardToken(req.Token) && req.Token != wizard.TokenStart {
		if i := strings.LastIndex(req.Token, "_"); i >= 0 {
			return r.catalog.Lang(req.Token[i+1:])
		}
	}
	if t, err := r.tickets.TicketByChannel(req.ChannelID); err == nil {
		return t.Language
	}
	return catalog.DefaultLanguage
}

func (r *Router) failure(req Request, err error) Response {
	lang := r.language(req)
	log := r.logger.With(
		zap.String("token", req.Token),
		zap.String("channel_id", req.ChannelID),
		zap.String("user_id", req.Member.ID))

	if errors.Is(err, errUnknownInteraction) {
		log.Warn("unhandled interaction")
		return replyText(r.catalog.Text(lang, "errors.generic"))
	}

	de := apperrors.ToDomainError(err)
	switch de.Code {
	case apperrors.CodeTicketNotFound:
		if req.Kind == KindCommand {
			return replyText(r.catalog.Text(lang, "ticket.notInTicket"))
		}
		return replyText(r.catalog.Text(lang, "errors.ticketNotFound"))
	case apperrors.CodeNotFound:
		return replyText(r.catalog.Text(lang, "errors.ticketNotFound"))
	case apperrors.CodeForbidden:
		return replyText(r.catalog.Text(lang, "errors.noPermission"))
	case apperrors.CodeAlreadyClaimed:
		return replyText(r.catalog.Text(lang, "errors.alreadyClaimed"))
	case apperrors.CodeTicketNotOpen:
		return replyText(r.catalog.Text(lang, "errors.notOpen"))
	case apperrors.CodeCategoryNotConfigured:
		return replyText(r.catalog.Text(lang, "errors.categoryNotFound"))
	case apperrors.CodeNotTicketCreator:
		return replyText(r.catalog.Text(lang, "feedback.notCreator"))
	case apperrors.CodeLimitReached:
		count, max, _ := apperrors.LimitFrom(err)
		return replyText(r.catalog.Text(lang, "ticket.limit.description", "count", strconv.Itoa(count), "max", strconv.Itoa(max)))
	case apperrors.CodeValidation:
		return replyText(r.validationText(lang, de))
	}

	log.Error("interaction failed", zap.String("code", de.Code), zap.Error(err))
	return replyText(r.catalog.Text(lang, "errors.generic"))
}

func (r *Router) validationText(lang string, de *apperrors.DomainError) string {
	label, _ := de.Details["label"].(string)
	if label == "" {
		return r.catalog.Text(lang, "errors.invalidInput")
	}
	if max, ok := de.Details["max"].(int); ok {
		return r.catalog.Text(lang, "errors.fieldTooLong", "field", label, "max", strconv.Itoa(max))
	}
	return r.catalog.Text(lang, "errors.invalidForm", "field", label)
}
