package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/interaction"
)

// Discord caps modal titles and input labels.
const maxModalText = 45

// Handler answers platform-neutral interactions.
type Handler interface {
	Defer(req interaction.Request) interaction.Deferral
	Handle(ctx context.Context, req interaction.Request) interaction.Response
}

// Responder is the part of a discordgo session that answers interactions.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(i *discordgo.Interaction, options ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Responder = (*discordgo.Session)(nil)

// Bridge feeds InteractionCreate events to a Handler and sends its answers back.
type Bridge struct {
	handler Handler
	logger  *zap.Logger
	timeout time.Duration
}

// NewBridge builds a bridge. timeout bounds each interaction.
func NewBridge(handler Handler, logger *zap.Logger, timeout time.Duration) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Bridge{handler: handler, logger: logger, timeout: timeout}
}

// Attach registers the bridge on the session.
func (b *Bridge) Attach(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.Serve(s, i.Interaction)
	})
}

// Serve answers one interaction. Slow requests are acknowledged first and
// answered through the interaction webhook once Handle returns.
func (b *Bridge) Serve(r Responder, i *discordgo.Interaction) {
	req, ok := toRequest(i)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	deferral := b.handler.Defer(req)
	if deferral.Defer {
		if err := r.InteractionRespond(i, deferredResponse(req, deferral), discordgo.WithContext(ctx)); err != nil {
			b.warn("interaction acknowledgement failed", req, err)
			return
		}
	}

	resp := b.handler.Handle(ctx, req)
	if !deferral.Defer {
		if err := r.InteractionRespond(i, toResponse(i, resp), discordgo.WithContext(ctx)); err != nil {
			b.warn("interaction response failed", req, err)
		}
		return
	}
	if err := b.finish(ctx, r, i, req, deferral, resp); err != nil {
		b.warn("deferred interaction response failed", req, err)
	}
}

func (b *Bridge) warn(msg string, req interaction.Request, err error) {
	b.logger.Warn(msg,
		zap.String("token", req.Token),
		zap.String("channel_id", req.ChannelID),
		zap.Error(err))
}

// deferredResponse is the acknowledgement of a deferred request. Commands get
// a placeholder message; controls and forms leave their message untouched.
func deferredResponse(req interaction.Request, d interaction.Deferral) *discordgo.InteractionResponse {
	if req.Kind != interaction.KindCommand {
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	}
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if d.Ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return resp
}

// finish delivers the answer to an acknowledged request.
func (b *Bridge) finish(ctx context.Context, r Responder, i *discordgo.Interaction, req interaction.Request, d interaction.Deferral, resp interaction.Response) error {
	opt := discordgo.WithContext(ctx)
	switch {
	case resp.Modal != nil:
		b.logger.Warn("form dropped after acknowledgement", zap.String("token", req.Token))
		return nil

	case resp.Update != nil:
		content := resp.Update.Content
		embeds := toEmbeds(resp.Update.Embeds)
		if embeds == nil {
			embeds = []*discordgo.MessageEmbed{}
		}
		components := toComponents(resp.Update.Buttons)
		if components == nil {
			components = []discordgo.MessageComponent{}
		}
		_, err := r.InteractionResponseEdit(i, &discordgo.WebhookEdit{
			Content:    &content,
			Embeds:     &embeds,
			Components: &components,
		}, opt)
		return err

	case resp.Controls != nil:
		components := toComponents(resp.Controls)
		_, err := r.InteractionResponseEdit(i, &discordgo.WebhookEdit{Components: &components}, opt)
		return err

	case resp.Reply != nil:
		// the command placeholder becomes the reply when visibility matches
		if req.Kind == interaction.KindCommand && resp.Ephemeral == d.Ephemeral {
			content := resp.Reply.Content
			embeds := toEmbeds(resp.Reply.Embeds)
			if embeds == nil {
				embeds = []*discordgo.MessageEmbed{}
			}
			edit := &discordgo.WebhookEdit{
				Content: &content,
				Embeds:  &embeds,
				Files:   toFiles(resp.Reply.Files),
			}
			if components := toComponents(resp.Reply.Buttons); components != nil {
				edit.Components = &components
			}
			_, err := r.InteractionResponseEdit(i, edit, opt)
			return err
		}
		if req.Kind == interaction.KindCommand {
			if err := r.InteractionResponseDelete(i, opt); err != nil {
				return err
			}
		}
		params := &discordgo.WebhookParams{
			Content:    resp.Reply.Content,
			Embeds:     toEmbeds(resp.Reply.Embeds),
			Components: toComponents(resp.Reply.Buttons),
			Files:      toFiles(resp.Reply.Files),
		}
		if resp.Ephemeral {
			params.Flags = discordgo.MessageFlagsEphemeral
		}
		_, err := r.FollowupMessageCreate(i, false, params, opt)
		return err
	}

	if req.Kind == interaction.KindCommand {
		return r.InteractionResponseDelete(i, opt)
	}
	return nil
}

func toRequest(i *discordgo.Interaction) (interaction.Request, bool) {
	req := interaction.Request{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Member:    toMember(i),
	}
	if i.Message != nil {
		req.MessageID = i.Message.ID
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		req.Kind = interaction.KindComponent
		req.Token = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		req.Kind = interaction.KindModalSubmit
		req.Token = data.CustomID
		req.Fields = modalFields(data.Components)
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		req.Kind = interaction.KindCommand
		req.Token = data.Name
		req.Options = make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			switch opt.Type {
			case discordgo.ApplicationCommandOptionUser:
				req.Options[opt.Name] = opt.UserValue(nil).ID
			case discordgo.ApplicationCommandOptionString:
				req.Options[opt.Name] = opt.StringValue()
			}
		}
	default:
		return interaction.Request{}, false
	}
	return req, true
}

func toMember(i *discordgo.Interaction) interaction.Member {
	if i.Member != nil && i.Member.User != nil {
		name := i.Member.Nick
		if name == "" {
			name = i.Member.User.Username
		}
		return interaction.Member{
			ID:            i.Member.User.ID,
			Name:          name,
			RoleIDs:       i.Member.Roles,
			Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
		}
	}
	if i.User != nil {
		return interaction.Member{ID: i.User.ID, Name: i.User.Username}
	}
	return interaction.Member{}
}

func modalFields(rows []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	for _, c := range rows {
		var inner []discordgo.MessageComponent
		switch row := c.(type) {
		case *discordgo.ActionsRow:
			inner = row.Components
		case discordgo.ActionsRow:
			inner = row.Components
		}
		for _, ic := range inner {
			switch in := ic.(type) {
			case *discordgo.TextInput:
				fields[in.CustomID] = in.Value
			case discordgo.TextInput:
				fields[in.CustomID] = in.Value
			}
		}
	}
	return fields
}

func toResponse(i *discordgo.Interaction, resp interaction.Response) *discordgo.InteractionResponse {
	switch {
	case resp.Modal != nil:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID:   resp.Modal.Token,
				Title:      clip(resp.Modal.Title, maxModalText),
				Components: modalComponents(resp.Modal),
			},
		}

	case resp.Update != nil:
		embeds := toEmbeds(resp.Update.Embeds)
		if embeds == nil {
			embeds = []*discordgo.MessageEmbed{}
		}
		components := toComponents(resp.Update.Buttons)
		if components == nil {
			components = []discordgo.MessageComponent{}
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    resp.Update.Content,
				Embeds:     embeds,
				Components: components,
			},
		}

	case resp.Controls != nil:
		// content and embeds have no omitempty, so they are echoed back
		data := &discordgo.InteractionResponseData{Components: toComponents(resp.Controls)}
		if i.Message != nil {
			data.Content = i.Message.Content
			data.Embeds = i.Message.Embeds
		}
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseUpdateMessage, Data: data}

	case resp.Reply != nil:
		data := &discordgo.InteractionResponseData{
			Content:    resp.Reply.Content,
			Embeds:     toEmbeds(resp.Reply.Embeds),
			Components: toComponents(resp.Reply.Buttons),
			Files:      toFiles(resp.Reply.Files),
		}
		if resp.Ephemeral {
			data.Flags = discordgo.MessageFlagsEphemeral
		}
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseChannelMessageWithSource, Data: data}
	}
	return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
}

func modalComponents(m *interaction.Modal) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, 0, len(m.Fields))
	for _, f := range m.Fields {
		style := discordgo.TextInputShort
		if f.Paragraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  f.ID,
				Label:     clip(f.Label, maxModalText),
				Style:     style,
				Required:  f.Required,
				MinLength: f.MinLength,
				MaxLength: f.MaxLength,
			},
		}})
	}
	return rows
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
