package wizard

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// maxFormFields is the platform's limit of inputs per form.
const maxFormFields = 5

// TicketCreator is the lifecycle operation the terminal step invokes.
type TicketCreator interface {
	Create(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error)
}

// Actor identifies who is clicking through the flow.
type Actor struct {
	UserID  string
	GuildID string
}

// Option is one selectable choice of a prompt.
type Option struct {
	Label string
	Token string
}

// Field is one input of a form prompt.
type Field struct {
	ID        string
	Label     string
	Required  bool
	Paragraph bool
	MinLength int
	MaxLength int
}

// Form asks the requester to fill in the category's fields. Submitting it
// echoes Token back.
type Form struct {
	Token  string
	Title  string
	Fields []Field
}

// Limit is the requester's open-ticket count and the configured maximum.
type Limit struct {
	Count int
	Max   int
}

// Step is what a transition produces. Exactly one of Options, Form, Ticket or
// Limit is set; Title and Description are presentation hints in Language.
type Step struct {
	State       State
	Language    string
	Title       string
	Description string
	Options     []Option
	Form        *Form
	Ticket      *domain.Ticket
	Limit       *Limit
}

// Wizard computes transitions. It holds no per-user state.
type Wizard struct {
	catalog *catalog.Catalog
	codec   Codec
	creator TicketCreator
	logger  *zap.Logger
}

// New builds a wizard over the static catalog.
func New(cat *catalog.Catalog, creator TicketCreator, logger *zap.Logger) *Wizard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wizard{
		catalog: cat,
		codec:   NewCodec(cat.ServerIDs()),
		creator: creator,
		logger:  logger,
	}
}

// Codec returns the token codec used by this wizard.
func (w *Wizard) Codec() Codec { return w.codec }

// Advance decodes token and produces the next step. form carries submitted
// field values for the terminal step and is ignored otherwise.
func (w *Wizard) Advance(ctx context.Context, actor Actor, token string, form domain.FormData) (Step, error) {
	state, err := w.codec.Decode(token)
	if err != nil {
		if errors.Is(err, ErrNotWizardToken) {
			return Step{}, err
		}
		return Step{}, apperrors.NewValidationError("invalid wizard token", map[string]any{"token": token})
	}

	switch st := state.(type) {
	case AwaitingLanguage:
		return w.languagePrompt(st), nil
	case AwaitingCategory:
		if err := w.checkLanguage(st.Language); err != nil {
			return Step{}, err
		}
		return w.categoryPrompt(st), nil
	case AwaitingServer:
		tt, err := w.checkTypeAndLanguage(st.Category, st.Language)
		if err != nil {
			return Step{}, err
		}
		return w.serverPrompt(st, tt), nil
	case Completed:
		return w.complete(ctx, actor, st, form)
	}
	return Step{}, ErrNotWizardToken
}

func (w *Wizard) languagePrompt(st AwaitingLanguage) Step {
	titles := make([]string, 0, len(w.catalog.Languages))
	opts := make([]Option, 0, len(w.catalog.Languages))
	for _, l := range w.catalog.Languages {
		titles = append(titles, w.catalog.Text(l.Code, "wizard.language.title"))
		opts = append(opts, Option{Label: l.Name, Token: w.codec.Encode(AwaitingCategory{Language: l.Code})})
	}
	return Step{
		State:    st,
		Language: catalog.DefaultLanguage,
		Title:    strings.Join(titles, " / "),
		Options:  opts,
	}
}

func (w *Wizard) categoryPrompt(st AwaitingCategory) Step {
	opts := make([]Option, 0, len(w.catalog.TicketTypes))
	for _, tt := range w.catalog.TicketTypes {
		opts = append(opts, Option{
			Label: tt.Name(st.Language),
			Token: w.codec.Encode(AwaitingServer{Language: st.Language, Category: tt.ID}),
		})
	}
	return Step{
		State:       st,
		Language:    st.Language,
		Title:       w.catalog.Text(st.Language, "wizard.category.title"),
		Description: w.catalog.Text(st.Language, "wizard.category.description", "language", w.catalog.LanguageName(st.Language)),
		Options:     opts,
	}
}

func (w *Wizard) serverPrompt(st AwaitingServer, tt catalog.TicketType) Step {
	opts := make([]Option, 0, len(w.catalog.Servers))
	for _, srv := range w.catalog.Servers {
		opts = append(opts, Option{
			Label: srv.Name,
			Token: w.codec.Encode(Completed{Language: st.Language, Category: st.Category, Server: srv.ID}),
		})
	}
	return Step{
		State:       st,
		Language:    st.Language,
		Title:       w.catalog.Text(st.Language, "wizard.server.title"),
		Description: w.catalog.Text(st.Language, "wizard.server.description", "category", tt.Name(st.Language)),
		Options:     opts,
	}
}

func (w *Wizard) complete(ctx context.Context, actor Actor, st Completed, form domain.FormData) (Step, error) {
	tt, err := w.checkTypeAndLanguage(st.Category, st.Language)
	if err != nil {
		return Step{}, err
	}
	if st.Server != "" && !w.catalog.HasServer(st.Server) {
		return Step{}, apperrors.NewValidationError("unknown server", map[string]any{"server": st.Server})
	}
	if len(tt.Fields) == 0 {
		return Step{}, apperrors.NewValidationError("ticket type has no form", map[string]any{"ticket_type": tt.ID})
	}

	if !st.FormSubmitted {
		next := st
		next.FormSubmitted = true
		return Step{
			State:    st,
			Language: st.Language,
			Title:    tt.Name(st.Language),
			Form:     w.form(tt, st.Language, w.codec.Encode(next)),
		}, nil
	}

	data, err := w.collect(tt, st.Language, form)
	if err != nil {
		return Step{}, err
	}

	ticket, err := w.creator.Create(ctx, domain.TicketDraft{
		Type:     tt.ID,
		UserID:   actor.UserID,
		GuildID:  actor.GuildID,
		Language: st.Language,
		Server:   st.Server,
		FormData: data,
	})
	if count, max, ok := apperrors.LimitFrom(err); ok {
		w.logger.Info("ticket limit reached",
			zap.String("user_id", actor.UserID),
			zap.Int("count", count),
			zap.Int("max", max))
		return Step{
			State:       st,
			Language:    st.Language,
			Title:       w.catalog.Text(st.Language, "ticket.limit.title"),
			Description: w.catalog.Text(st.Language, "ticket.limit.description", "count", strconv.Itoa(count), "max", strconv.Itoa(max)),
			Limit:       &Limit{Count: count, Max: max},
		}, nil
	}
	if err != nil {
		return Step{}, err
	}
	return Step{
		State:       st,
		Language:    st.Language,
		Description: w.catalog.Text(st.Language, "wizard.created", "channel", ticket.Channel()),
		Ticket:      &ticket,
	}, nil
}

func (w *Wizard) form(tt catalog.TicketType, lang, token string) *Form {
	f := &Form{Token: token, Title: tt.Name(lang)}
	for _, field := range formFields(tt) {
		f.Fields = append(f.Fields, Field{
			ID:        field.ID,
			Label:     w.catalog.FieldLabel(lang, field.ID),
			Required:  field.Required,
			Paragraph: field.Style == catalog.FieldParagraph,
			MinLength: field.MinLength(),
			MaxLength: field.MaxLength,
		})
	}
	return f
}

// formFields is the part of the template a form can show.
func formFields(tt catalog.TicketType) []catalog.FormField {
	if len(tt.Fields) > maxFormFields {
		return tt.Fields[:maxFormFields]
	}
	return tt.Fields
}

// collect keeps the fields the form showed, enforcing required and maximum
// length.
func (w *Wizard) collect(tt catalog.TicketType, lang string, form domain.FormData) (domain.FormData, error) {
	fields := formFields(tt)
	data := make(domain.FormData, len(fields))
	for _, field := range fields {
		value := strings.TrimSpace(form[field.ID])
		if value == "" {
			if field.Required {
				return nil, apperrors.NewValidationError("required field missing", map[string]any{
					"field": field.ID,
					"label": w.catalog.FieldLabel(lang, field.ID),
				})
			}
			continue
		}
		if field.MaxLength > 0 && utf8.RuneCountInString(value) > field.MaxLength {
			return nil, apperrors.NewValidationError("field too long", map[string]any{
				"field": field.ID,
				"label": w.catalog.FieldLabel(lang, field.ID),
				"max":   field.MaxLength,
			})
		}
		data[field.ID] = value
	}
	return data, nil
}

func (w *Wizard) checkLanguage(lang string) error {
	if !w.catalog.HasLanguage(lang) {
		return apperrors.NewValidationError("unknown language", map[string]any{"language": lang})
	}
	return nil
}

func (w *Wizard) checkTypeAndLanguage(category, lang string) (catalog.TicketType, error) {
	if err := w.checkLanguage(lang); err != nil {
		return catalog.TicketType{}, err
	}
	tt, ok := w.catalog.TicketType(category)
	if !ok {
		return catalog.TicketType{}, apperrors.NewNotFound("ticket type", map[string]any{"ticket_type": category})
	}
	return tt, nil
}
