package discord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/interaction"
)

type call struct {
	name     string
	at       time.Time
	response *discordgo.InteractionResponse
	edit     *discordgo.WebhookEdit
	followup *discordgo.WebhookParams
}

type recordingResponder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingResponder) record(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.at = time.Now()
	r.calls = append(r.calls, c)
}

func (r *recordingResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	r.record(call{name: "respond", response: resp})
	return nil
}

func (r *recordingResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.record(call{name: "edit", edit: edit})
	return &discordgo.Message{}, nil
}

func (r *recordingResponder) InteractionResponseDelete(_ *discordgo.Interaction, _ ...discordgo.RequestOption) error {
	r.record(call{name: "delete"})
	return nil
}

func (r *recordingResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.record(call{name: "followup", followup: data})
	return &discordgo.Message{}, nil
}

func (r *recordingResponder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.name)
	}
	return out
}

// slowHandler takes delay to answer and remembers when it started.
type slowHandler struct {
	deferral interaction.Deferral
	resp     interaction.Response
	delay    time.Duration
	started  time.Time
	done     time.Time
}

func (h *slowHandler) Defer(interaction.Request) interaction.Deferral { return h.deferral }

func (h *slowHandler) Handle(context.Context, interaction.Request) interaction.Response {
	h.started = time.Now()
	time.Sleep(h.delay)
	h.done = time.Now()
	return h.resp
}

func commandInteraction(name string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u"},
		Data: discordgo.ApplicationCommandInteractionData{Name: name},
	}
}

func componentInteraction(customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		User:    &discordgo.User{ID: "u"},
		Message: &discordgo.Message{ID: "m", Content: "intro"},
		Data:    discordgo.MessageComponentInteractionData{CustomID: customID},
	}
}

func TestServeAcknowledgesSlowCommandBeforeHandling(t *testing.T) {
	h := &slowHandler{
		deferral: interaction.Deferral{Defer: true, Ephemeral: true},
		resp:     interaction.Response{Reply: &gateway.Message{Content: "setup done"}, Ephemeral: true},
		delay:    50 * time.Millisecond,
	}
	r := &recordingResponder{}
	NewBridge(h, nil, time.Second).Serve(r, commandInteraction("setup"))

	require.Equal(t, []string{"respond", "edit"}, r.names())
	ack := r.calls[0]
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, ack.response.Type)
	require.NotNil(t, ack.response.Data)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, ack.response.Data.Flags)
	assert.False(t, ack.at.After(h.started))

	edit := r.calls[1]
	assert.False(t, edit.at.Before(h.done))
	require.NotNil(t, edit.edit.Content)
	assert.Equal(t, "setup done", *edit.edit.Content)
}

func TestServeMovesReplyOfOtherVisibilityToFollowup(t *testing.T) {
	h := &slowHandler{
		deferral: interaction.Deferral{Defer: true},
		resp:     interaction.Response{Reply: &gateway.Message{Content: "no permission"}, Ephemeral: true},
	}
	r := &recordingResponder{}
	NewBridge(h, nil, time.Second).Serve(r, commandInteraction("rename"))

	require.Equal(t, []string{"respond", "delete", "followup"}, r.names())
	assert.Nil(t, r.calls[0].response.Data)
	assert.Equal(t, "no permission", r.calls[2].followup.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.calls[2].followup.Flags)
}

func TestServeDeferredControl(t *testing.T) {
	h := &slowHandler{
		deferral: interaction.Deferral{Defer: true},
		resp: interaction.Response{Reply: &gateway.Message{
			Content: "transcript",
			Files:   []gateway.File{{Name: "t.html", ContentType: "text/html", Data: []byte("<html>")}},
		}, Ephemeral: true},
		delay: 20 * time.Millisecond,
	}
	r := &recordingResponder{}
	NewBridge(h, nil, time.Second).Serve(r, componentInteraction("ticket_transcript"))

	require.Equal(t, []string{"respond", "followup"}, r.names())
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, r.calls[0].response.Type)
	assert.False(t, r.calls[0].at.After(h.started))
	followup := r.calls[1].followup
	assert.Equal(t, discordgo.MessageFlagsEphemeral, followup.Flags)
	require.Len(t, followup.Files, 1)
	assert.Equal(t, "t.html", followup.Files[0].Name)
}

func TestServeDeferredUpdateEditsMessage(t *testing.T) {
	h := &slowHandler{
		deferral: interaction.Deferral{Defer: true},
		resp:     interaction.Response{Update: &gateway.Message{Content: "created"}},
	}
	r := &recordingResponder{}
	NewBridge(h, nil, time.Second).Serve(r, componentInteraction("ticket_reopen_1"))

	require.Equal(t, []string{"respond", "edit"}, r.names())
	edit := r.calls[1].edit
	assert.Equal(t, "created", *edit.Content)
	assert.NotNil(t, edit.Embeds)
	assert.NotNil(t, edit.Components)
}

func TestServeAnswersFastRequestDirectly(t *testing.T) {
	h := &slowHandler{resp: interaction.Response{Controls: []gateway.Button{{Label: "Claimed", Token: "ticket_claim", Disabled: true}}}}
	r := &recordingResponder{}
	NewBridge(h, nil, time.Second).Serve(r, componentInteraction("ticket_claim"))

	require.Equal(t, []string{"respond"}, r.names())
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, r.calls[0].response.Type)
	assert.Equal(t, "intro", r.calls[0].response.Data.Content)
}

func TestServeIgnoresUnsupportedInteractions(t *testing.T) {
	r := &recordingResponder{}
	NewBridge(&slowHandler{}, nil, time.Second).Serve(r, &discordgo.Interaction{Type: discordgo.InteractionPing})
	assert.Empty(t, r.names())
}
