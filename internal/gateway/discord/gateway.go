// Package discord adapts the gateway boundary and the interaction router to
// Discord through discordgo.
package discord

import (
	"bytes"
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// buttonsPerRow is Discord's limit of components per action row.
const buttonsPerRow = 5

// Gateway implements gateway.Gateway on a discordgo session.
type Gateway struct {
	session *discordgo.Session
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway wraps an opened session.
func NewGateway(session *discordgo.Session) *Gateway {
	return &Gateway{session: session}
}

func (g *Gateway) CreateChannel(ctx context.Context, spec gateway.ChannelSpec) (gateway.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 channelType(spec.Kind),
		Topic:                spec.Topic,
		Position:             spec.Position,
		ParentID:             spec.ParentID,
		PermissionOverwrites: toOverwrites(spec.Overwrites),
	}
	ch, err := g.session.GuildChannelCreateComplex(spec.GuildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.Channel{}, mapError(err)
	}
	return fromChannel(ch), nil
}

func (g *Gateway) FetchChannel(ctx context.Context, channelID string) (gateway.Channel, error) {
	ch, err := g.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.Channel{}, mapError(err)
	}
	return fromChannel(ch), nil
}

func (g *Gateway) GuildChannels(ctx context.Context, guildID string) ([]gateway.Channel, error) {
	channels, err := g.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]gateway.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, fromChannel(ch))
	}
	return out, nil
}

func (g *Gateway) SetChannelName(ctx context.Context, channelID, name string) error {
	_, err := g.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *Gateway) SetPermission(ctx context.Context, channelID string, ow gateway.Overwrite) error {
	err := g.session.ChannelPermissionSet(channelID, ow.TargetID, overwriteType(ow.Kind),
		toPermissions(ow.Allow), toPermissions(ow.Deny), discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *Gateway) RemovePermission(ctx context.Context, channelID, targetID string) error {
	return mapError(g.session.ChannelPermissionDelete(channelID, targetID, discordgo.WithContext(ctx)))
}

func (g *Gateway) SendMessage(ctx context.Context, channelID string, msg gateway.Message) (string, error) {
	m, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embeds),
		Components: toComponents(msg.Buttons),
		Files:      toFiles(msg.Files),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles, discordgo.AllowedMentionTypeUsers},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return m.ID, nil
}

func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID string, msg gateway.Message) error {
	content := msg.Content
	embeds := toEmbeds(msg.Embeds)
	components := toComponents(msg.Buttons)
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := g.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapError(g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (g *Gateway) FetchMessages(ctx context.Context, channelID, before string, limit int) ([]gateway.StoredMessage, error) {
	msgs, err := g.session.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]gateway.StoredMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fromMessage(m))
	}
	return out, nil
}

func (g *Gateway) BotUserID() string {
	if g.session.State == nil || g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}

// mapError translates Discord's "unknown" REST codes into gateway sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownChannel:
			return errors.Join(gateway.ErrChannelNotFound, err)
		case discordgo.ErrCodeUnknownMessage:
			return errors.Join(gateway.ErrMessageNotFound, err)
		}
	}
	return err
}

func channelType(kind gateway.ChannelKind) discordgo.ChannelType {
	if kind == gateway.ChannelCategory {
		return discordgo.ChannelTypeGuildCategory
	}
	return discordgo.ChannelTypeGuildText
}

func fromChannel(ch *discordgo.Channel) gateway.Channel {
	kind := gateway.ChannelText
	if ch.Type == discordgo.ChannelTypeGuildCategory {
		kind = gateway.ChannelCategory
	}
	return gateway.Channel{ID: ch.ID, GuildID: ch.GuildID, ParentID: ch.ParentID, Name: ch.Name, Kind: kind}
}

func overwriteType(kind gateway.TargetKind) discordgo.PermissionOverwriteType {
	if kind == gateway.TargetMember {
		return discordgo.PermissionOverwriteTypeMember
	}
	return discordgo.PermissionOverwriteTypeRole
}

var permissionBits = []struct {
	own     gateway.Permission
	discord int64
}{
	{gateway.PermViewChannel, discordgo.PermissionViewChannel},
	{gateway.PermSendMessages, discordgo.PermissionSendMessages},
	{gateway.PermReadHistory, discordgo.PermissionReadMessageHistory},
	{gateway.PermAttachFiles, discordgo.PermissionAttachFiles},
	{gateway.PermEmbedLinks, discordgo.PermissionEmbedLinks},
	{gateway.PermManageMessages, discordgo.PermissionManageMessages},
	{gateway.PermManageChannels, discordgo.PermissionManageChannels},
}

func toPermissions(p gateway.Permission) int64 {
	var out int64
	for _, bit := range permissionBits {
		if p.Has(bit.own) {
			out |= bit.discord
		}
	}
	return out
}

func toOverwrites(ows []gateway.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(ows))
	for _, ow := range ows {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.TargetID,
			Type:  overwriteType(ow.Kind),
			Allow: toPermissions(ow.Allow),
			Deny:  toPermissions(ow.Deny),
		})
	}
	return out
}

func toEmbeds(embeds []gateway.Embed) []*discordgo.MessageEmbed {
	if len(embeds) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{Title: e.Title, Description: e.Description, Color: e.Color}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		out = append(out, me)
	}
	return out
}

func fromEmbeds(embeds []*discordgo.MessageEmbed) []gateway.Embed {
	out := make([]gateway.Embed, 0, len(embeds))
	for _, me := range embeds {
		e := gateway.Embed{Title: me.Title, Description: me.Description, Color: me.Color}
		for _, f := range me.Fields {
			e.Fields = append(e.Fields, gateway.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if me.Footer != nil {
			e.Footer = me.Footer.Text
		}
		out = append(out, e)
	}
	return out
}

var buttonStyles = map[gateway.ButtonStyle]discordgo.ButtonStyle{
	gateway.ButtonPrimary:   discordgo.PrimaryButton,
	gateway.ButtonSecondary: discordgo.SecondaryButton,
	gateway.ButtonSuccess:   discordgo.SuccessButton,
	gateway.ButtonDanger:    discordgo.DangerButton,
}

// toComponents lays buttons out in action rows of five.
func toComponents(buttons []gateway.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    buttonStyles[b.Style],
				Disabled: b.Disabled,
				CustomID: b.Token,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func toFiles(files []gateway.File) []*discordgo.File {
	if len(files) == 0 {
		return nil
	}
	out := make([]*discordgo.File, 0, len(files))
	for _, f := range files {
		out = append(out, &discordgo.File{Name: f.Name, ContentType: f.ContentType, Reader: bytes.NewReader(f.Data)})
	}
	return out
}

func fromMessage(m *discordgo.Message) gateway.StoredMessage {
	sm := gateway.StoredMessage{
		ID:         m.ID,
		Content:    m.Content,
		Embeds:     fromEmbeds(m.Embeds),
		HasButtons: len(m.Components) > 0,
		Timestamp:  m.Timestamp,
	}
	if m.Author != nil {
		sm.AuthorID = m.Author.ID
		sm.AuthorName = m.Author.Username
		sm.AuthorBot = m.Author.Bot
	}
	for _, a := range m.Attachments {
		sm.Attachments = append(sm.Attachments, gateway.Attachment{Name: a.Filename, URL: a.URL})
	}
	return sm
}
