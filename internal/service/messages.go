package service

import (
	"strconv"

	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/wizard"
)

const (
	colorPrimary = 0x5865F2
	colorSuccess = 0x57F287
	colorWarning = 0xFEE75C
	colorDanger  = 0xED4245
)

// TicketButtons are the controls of an open ticket's intro message.
func TicketButtons(cat *catalog.Catalog, lang string, claimed bool) []gateway.Button {
	claim := gateway.Button{Label: cat.Text(lang, "ticket.button.claim"), Token: TokenClaim, Style: gateway.ButtonPrimary}
	if claimed {
		claim.Label = cat.Text(lang, "ticket.button.claimed")
		claim.Style = gateway.ButtonSuccess
	}
	return []gateway.Button{
		{Label: cat.Text(lang, "ticket.button.close"), Token: TokenClose, Style: gateway.ButtonDanger},
		claim,
		{Label: cat.Text(lang, "ticket.button.transcript"), Token: TokenTranscript, Style: gateway.ButtonSecondary},
		{Label: cat.Text(lang, "ticket.button.callSenior"), Token: TokenCallSenior, Style: gateway.ButtonSecondary},
	}
}

// FeedbackButtons are the rating controls of a feedback prompt.
func FeedbackButtons(staffID string, ticketID int, disabled bool) []gateway.Button {
	if disabled {
		return []gateway.Button{
			{Label: "+rep", Token: TokenFeedbackDisabledPositive, Style: gateway.ButtonSecondary, Disabled: true},
			{Label: "-rep", Token: TokenFeedbackDisabledNegative, Style: gateway.ButtonSecondary, Disabled: true},
		}
	}
	return []gateway.Button{
		{Label: "+rep", Token: FeedbackToken(domain.FeedbackPositive, staffID, ticketID), Style: gateway.ButtonSuccess},
		{Label: "-rep", Token: FeedbackToken(domain.FeedbackNegative, staffID, ticketID), Style: gateway.ButtonDanger},
	}
}

// PanelMessage is the public entry point of the creation flow.
func PanelMessage(cat *catalog.Catalog) gateway.Message {
	lang := catalog.DefaultLanguage
	return gateway.Message{
		Embeds: []gateway.Embed{{
			Title:       cat.Text(lang, "panel.title"),
			Description: cat.Text(lang, "panel.description"),
			Color:       colorPrimary,
		}},
		Buttons: []gateway.Button{{
			Label: cat.Text(lang, "panel.button"),
			Token: wizard.TokenStart,
			Style: gateway.ButtonPrimary,
		}},
	}
}

func introMessage(cat *catalog.Catalog, tt catalog.TicketType, t domain.Ticket) gateway.Message {
	lang := t.Language
	fields := []gateway.EmbedField{
		{Name: cat.Text(lang, "ticket.field.category"), Value: tt.Name(lang), Inline: true},
		{Name: cat.Text(lang, "ticket.field.author"), Value: userMention(t.UserID), Inline: true},
	}
	if t.Server != "" {
		fields = append(fields, gateway.EmbedField{Name: cat.Text(lang, "ticket.field.server"), Value: cat.ServerName(t.Server), Inline: true})
	}
	for _, f := range tt.Fields {
		if v, ok := t.FormData[f.ID]; ok && v != "" {
			fields = append(fields, gateway.EmbedField{Name: cat.FieldLabel(lang, f.ID), Value: v})
		}
	}
	return gateway.Message{
		Content: userMention(t.UserID),
		Embeds: []gateway.Embed{{
			Title:       cat.Text(lang, "ticket.created.title"),
			Description: cat.Text(lang, "ticket.created.description"),
			Color:       tt.Color,
			Fields:      fields,
			Footer:      cat.Text(lang, "ticket.footer", "id", strconv.Itoa(t.ID)),
		}},
		Buttons: TicketButtons(cat, lang, false),
	}
}

func claimedMessage(cat *catalog.Catalog, lang, staffID string) gateway.Message {
	return gateway.Message{Embeds: []gateway.Embed{{
		Title:       cat.Text(lang, "ticket.claimed.title"),
		Description: cat.Text(lang, "ticket.claimed.description", "user", staffID),
		Color:       colorSuccess,
	}}}
}

func closedControls(cat *catalog.Catalog, t domain.Ticket) gateway.Message {
	lang := t.Language
	embed := gateway.Embed{
		Title:       cat.Text(lang, "ticket.closed.title"),
		Description: cat.Text(lang, "ticket.closed.description"),
		Color:       colorWarning,
		Footer:      cat.Text(lang, "ticket.footer", "id", strconv.Itoa(t.ID)),
	}
	if reason := ptrValue(t.CloseReason); reason != "" {
		embed.Fields = []gateway.EmbedField{{Name: cat.Text(lang, "close.modal.reason"), Value: reason}}
	}
	return gateway.Message{
		Embeds: []gateway.Embed{embed},
		Buttons: []gateway.Button{
			{Label: cat.Text(lang, "ticket.button.reopen"), Token: ReopenToken(t.ID), Style: gateway.ButtonSuccess},
			{Label: cat.Text(lang, "ticket.button.transcript"), Token: TranscriptSaveToken(t.ID), Style: gateway.ButtonPrimary},
			{Label: cat.Text(lang, "ticket.button.delete"), Token: DeleteToken(t.ID), Style: gateway.ButtonDanger},
		},
	}
}

func closingNotice(cat *catalog.Catalog, lang string, seconds int) gateway.Message {
	return gateway.Message{Embeds: []gateway.Embed{{
		Description: cat.Text(lang, "ticket.closing.description", "seconds", strconv.Itoa(seconds)),
		Color:       colorDanger,
	}}}
}

func transcriptLogMessage(cat *catalog.Catalog, t domain.Ticket, artifact *gateway.Artifact) gateway.Message {
	lang := t.Language
	closedBy := "-"
	if t.ClosedBy != nil {
		closedBy = userMention(*t.ClosedBy)
	}
	return gateway.Message{
		Embeds: []gateway.Embed{{
			Title: cat.Text(lang, "transcript.log.title", "id", strconv.Itoa(t.ID)),
			Color: colorPrimary,
			Fields: []gateway.EmbedField{
				{Name: cat.Text(lang, "ticket.field.author"), Value: userMention(t.UserID), Inline: true},
				{Name: cat.Text(lang, "transcript.log.closedBy"), Value: closedBy, Inline: true},
			},
		}},
		Files: []gateway.File{artifact.File},
	}
}

func feedbackPrompt(cat *catalog.Catalog, lang, targetID, staffID string, ticketID, minutes int) gateway.Message {
	return gateway.Message{
		Content: userMention(targetID),
		Embeds: []gateway.Embed{{
			Title:       cat.Text(lang, "feedback.request.title"),
			Description: cat.Text(lang, "feedback.request.description", "staff", staffID, "minutes", strconv.Itoa(minutes)),
			Color:       colorPrimary,
		}},
		Buttons: FeedbackButtons(staffID, ticketID, false),
	}
}

func feedbackLogMessage(cat *catalog.Catalog, lang string, fb domain.Feedback) gateway.Message {
	color, rating := colorSuccess, "+rep"
	if fb.Rating == domain.FeedbackNegative {
		color, rating = colorDanger, "-rep"
	}
	comment := fb.Comment
	if comment == "" {
		comment = cat.Text(lang, "feedback.log.noComment")
	}
	return gateway.Message{Embeds: []gateway.Embed{{
		Title: cat.Text(lang, "feedback.log.title"),
		Color: color,
		Fields: []gateway.EmbedField{
			{Name: cat.Text(lang, "feedback.log.player"), Value: userMention(fb.UserID), Inline: true},
			{Name: cat.Text(lang, "feedback.log.rating"), Value: rating, Inline: true},
			{Name: cat.Text(lang, "feedback.log.moderator"), Value: userMention(fb.ModeratorID), Inline: true},
			{Name: cat.Text(lang, "feedback.log.ticket"), Value: "#" + strconv.Itoa(fb.TicketID), Inline: true},
			{Name: cat.Text(lang, "feedback.log.comment"), Value: comment},
		},
	}}}
}
