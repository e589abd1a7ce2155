// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// Op names used for failure injection.
const (
	OpCreateChannel    = "create_channel"
	OpFetchChannel     = "fetch_channel"
	OpGuildChannels    = "guild_channels"
	OpSetChannelName   = "set_channel_name"
	OpDeleteChannel    = "delete_channel"
	OpSetPermission    = "set_permission"
	OpRemovePermission = "remove_permission"
	OpSendMessage      = "send_message"
	OpEditMessage      = "edit_message"
	OpDeleteMessage    = "delete_message"
	OpFetchMessages    = "fetch_messages"
)

// FakeChannel is the fake's record of a channel.
type FakeChannel struct {
	gateway.Channel
	Topic      string
	Overwrites map[string]gateway.Overwrite
	Messages   []FakeMessage
}

// FakeMessage is the fake's record of a message.
type FakeMessage struct {
	ID       string
	AuthorID string
	Message  gateway.Message
	Deleted  bool
	At       time.Time
}

// Fake is a thread-safe in-memory Gateway.
type Fake struct {
	mu       sync.Mutex
	seq      int
	botID    string
	channels map[string]*FakeChannel
	failures map[string]error
	calls    map[string]int
}

// New returns an empty fake whose bot user id is "bot".
func New() *Fake {
	return &Fake{
		botID:    "bot",
		channels: make(map[string]*FakeChannel),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Fail makes every subsequent call to op return err. A nil err clears it.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// AddChannel seeds an existing channel and returns its id.
func (f *Fake) AddChannel(guildID, parentID, name string, kind gateway.ChannelKind) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("ch")
	f.channels[id] = &FakeChannel{
		Channel:    gateway.Channel{ID: id, GuildID: guildID, ParentID: parentID, Name: name, Kind: kind},
		Overwrites: make(map[string]gateway.Overwrite),
	}
	return id
}

// AddUserMessage seeds a message from a non-bot author.
func (f *Fake) AddUserMessage(channelID, authorID, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	id := f.nextID("msg")
	ch.Messages = append(ch.Messages, FakeMessage{ID: id, AuthorID: authorID, Message: gateway.Message{Content: content}, At: time.Unix(int64(f.seq), 0).UTC()})
	return id
}

// Channel returns a copy of the channel record.
func (f *Fake) Channel(id string) (FakeChannel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return FakeChannel{}, false
	}
	out := *ch
	out.Overwrites = make(map[string]gateway.Overwrite, len(ch.Overwrites))
	for k, v := range ch.Overwrites {
		out.Overwrites[k] = v
	}
	out.Messages = append([]FakeMessage(nil), ch.Messages...)
	return out, true
}

// LiveMessages returns the channel's messages that were not deleted.
func (f *Fake) LiveMessages(channelID string) []FakeMessage {
	ch, ok := f.Channel(channelID)
	if !ok {
		return nil
	}
	var out []FakeMessage
	for _, m := range ch.Messages {
		if !m.Deleted {
			out = append(out, m)
		}
	}
	return out
}

// ChannelIDs returns all channel ids in creation order.
func (f *Fake) ChannelIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.channels))
	for id := range f.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return seqOf(ids[i]) < seqOf(ids[j]) })
	return ids
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return prefix + "-" + strconv.Itoa(f.seq)
}

func seqOf(id string) int {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			n, _ := strconv.Atoi(id[i+1:])
			return n
		}
	}
	return 0
}

func (f *Fake) enter(op string) error {
	f.calls[op]++
	return f.failures[op]
}

func (f *Fake) channel(id string) (*FakeChannel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, gateway.ErrChannelNotFound
	}
	return ch, nil
}

func (f *Fake) CreateChannel(_ context.Context, spec gateway.ChannelSpec) (gateway.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpCreateChannel); err != nil {
		return gateway.Channel{}, err
	}
	if spec.ParentID != "" {
		if _, ok := f.channels[spec.ParentID]; !ok {
			return gateway.Channel{}, fmt.Errorf("unknown parent %s", spec.ParentID)
		}
	}
	id := f.nextID("ch")
	ch := &FakeChannel{
		Channel:    gateway.Channel{ID: id, GuildID: spec.GuildID, ParentID: spec.ParentID, Name: spec.Name, Kind: spec.Kind},
		Topic:      spec.Topic,
		Overwrites: make(map[string]gateway.Overwrite),
	}
	for _, ow := range spec.Overwrites {
		ch.Overwrites[ow.TargetID] = ow
	}
	f.channels[id] = ch
	return ch.Channel, nil
}

func (f *Fake) FetchChannel(_ context.Context, channelID string) (gateway.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpFetchChannel); err != nil {
		return gateway.Channel{}, err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return gateway.Channel{}, err
	}
	return ch.Channel, nil
}

func (f *Fake) GuildChannels(_ context.Context, guildID string) ([]gateway.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpGuildChannels); err != nil {
		return nil, err
	}
	var out []gateway.Channel
	for _, ch := range f.channels {
		if ch.GuildID == guildID {
			out = append(out, ch.Channel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return seqOf(out[i].ID) < seqOf(out[j].ID) })
	return out, nil
}

func (f *Fake) SetChannelName(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpSetChannelName); err != nil {
		return err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return err
	}
	ch.Name = name
	return nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpDeleteChannel); err != nil {
		return err
	}
	if _, err := f.channel(channelID); err != nil {
		return err
	}
	delete(f.channels, channelID)
	return nil
}

func (f *Fake) SetPermission(_ context.Context, channelID string, ow gateway.Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpSetPermission); err != nil {
		return err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return err
	}
	ch.Overwrites[ow.TargetID] = ow
	return nil
}

func (f *Fake) RemovePermission(_ context.Context, channelID, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpRemovePermission); err != nil {
		return err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return err
	}
	delete(ch.Overwrites, targetID)
	return nil
}

func (f *Fake) SendMessage(_ context.Context, channelID string, msg gateway.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpSendMessage); err != nil {
		return "", err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return "", err
	}
	id := f.nextID("msg")
	ch.Messages = append(ch.Messages, FakeMessage{ID: id, AuthorID: f.botID, Message: msg, At: time.Unix(int64(f.seq), 0).UTC()})
	return id, nil
}

func (f *Fake) EditMessage(_ context.Context, channelID, messageID string, msg gateway.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpEditMessage); err != nil {
		return err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return err
	}
	for i := range ch.Messages {
		if ch.Messages[i].ID == messageID && !ch.Messages[i].Deleted {
			ch.Messages[i].Message = msg
			return nil
		}
	}
	return gateway.ErrMessageNotFound
}

func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpDeleteMessage); err != nil {
		return err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return err
	}
	for i := range ch.Messages {
		if ch.Messages[i].ID == messageID && !ch.Messages[i].Deleted {
			ch.Messages[i].Deleted = true
			return nil
		}
	}
	return gateway.ErrMessageNotFound
}

func (f *Fake) FetchMessages(_ context.Context, channelID, before string, limit int) ([]gateway.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpFetchMessages); err != nil {
		return nil, err
	}
	ch, err := f.channel(channelID)
	if err != nil {
		return nil, err
	}
	var out []gateway.StoredMessage
	for i := len(ch.Messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := ch.Messages[i]
		if m.Deleted {
			continue
		}
		if before != "" && seqOf(m.ID) >= seqOf(before) {
			continue
		}
		out = append(out, gateway.StoredMessage{
			ID:         m.ID,
			AuthorID:   m.AuthorID,
			AuthorName: m.AuthorID,
			AuthorBot:  m.AuthorID == f.botID,
			Content:    m.Message.Content,
			Embeds:     m.Message.Embeds,
			HasButtons: len(m.Message.Buttons) > 0,
			Timestamp:  m.At,
		})
	}
	return out, nil
}

func (f *Fake) BotUserID() string { return f.botID }

var _ gateway.Gateway = (*Fake)(nil)
