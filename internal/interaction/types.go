// Package interaction routes button clicks, form submissions and slash
// commands onto the creation flow and the ticket services. It knows nothing
// about the chat platform's wire format.
package interaction

import (
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/wizard"
)

// Kind tells what the user did.
type Kind int

const (
	KindComponent Kind = iota
	KindModalSubmit
	KindCommand
)

// Member is the acting guild member.
type Member struct {
	ID            string
	Name          string
	RoleIDs       []string
	Administrator bool
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Request is one user interaction.
type Request struct {
	Kind Kind
	// Token is the control token for components and forms, or the command name.
	Token     string
	GuildID   string
	ChannelID string
	// MessageID is the message carrying the clicked control, if any.
	MessageID string
	Member    Member
	// Fields are submitted form values by field id.
	Fields map[string]string
	// Options are command arguments by name; user options carry the user id.
	Options map[string]string
}

// Modal is a form to show.
type Modal struct {
	Token  string
	Title  string
	Fields []wizard.Field
}

// Response is what to answer. Exactly one of Reply, Update, Controls or
// Modal is set.
type Response struct {
	Reply     *gateway.Message
	Ephemeral bool
	// Update replaces the message carrying the clicked control.
	Update *gateway.Message
	// Controls replaces only the buttons of that message.
	Controls []gateway.Button
	Modal    *Modal
}

func reply(msg gateway.Message) Response {
	return Response{Reply: &msg, Ephemeral: true}
}

func replyText(text string) Response {
	return reply(gateway.Message{Content: text})
}

func publicText(text string) Response {
	return Response{Reply: &gateway.Message{Content: text}}
}
