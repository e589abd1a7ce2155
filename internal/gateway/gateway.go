// Package gateway defines the boundary to the chat platform: channels,
// permission overwrites and messages. Implementations are network-latent and
// fallible; callers never retry.
package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrChannelNotFound is returned when a channel does not exist (anymore).
	ErrChannelNotFound = errors.New("gateway: channel not found")
	// ErrMessageNotFound is returned when a message does not exist (anymore).
	ErrMessageNotFound = errors.New("gateway: message not found")
)

// MaxChannelNameLength is the platform's channel-name ceiling.
const MaxChannelNameLength = 100

// Permission is a capability bit set on a channel overwrite.
type Permission uint64

const (
	PermViewChannel Permission = 1 << iota
	PermSendMessages
	PermReadHistory
	PermAttachFiles
	PermEmbedLinks
	PermManageMessages
	PermManageChannels
)

// ParticipantPermissions are granted to ticket requesters and added members.
const ParticipantPermissions = PermViewChannel | PermSendMessages | PermReadHistory | PermAttachFiles | PermEmbedLinks

// StaffPermissions are granted to access roles on ticket channels.
const StaffPermissions = ParticipantPermissions | PermManageMessages

// Has reports whether all bits of q are set.
func (p Permission) Has(q Permission) bool { return p&q == q }

// TargetKind tells whether an overwrite applies to a role or a member.
type TargetKind int

const (
	TargetRole TargetKind = iota
	TargetMember
)

// Overwrite is a per-target permission override on a channel.
type Overwrite struct {
	TargetID string
	Kind     TargetKind
	Allow    Permission
	Deny     Permission
}

// ChannelKind distinguishes text channels from channel categories.
type ChannelKind int

const (
	ChannelText ChannelKind = iota
	ChannelCategory
)

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	GuildID    string
	ParentID   string
	Name       string
	Topic      string
	Kind       ChannelKind
	Position   int
	Overwrites []Overwrite
}

// Channel is the gateway's view of an existing channel.
type Channel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	Kind     ChannelKind
}

// ButtonStyle selects the visual variant of a button.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable control; Token is echoed back on click.
type Button struct {
	Label    string
	Token    string
	Style    ButtonStyle
	Disabled bool
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
}

// File is an attachment uploaded with a message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is an outgoing message. Buttons are laid out in rows of five.
type Message struct {
	Content string
	Embeds  []Embed
	Buttons []Button
	Files   []File
}

// Attachment is a file already attached to a stored message.
type Attachment struct {
	Name string
	URL  string
}

// StoredMessage is a message read back from channel history.
type StoredMessage struct {
	ID          string
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	Content     string
	Embeds      []Embed
	HasButtons  bool
	Attachments []Attachment
	Timestamp   time.Time
}

// Gateway is the chat-platform capability the core depends on.
type Gateway interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error)
	FetchChannel(ctx context.Context, channelID string) (Channel, error)
	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	SetChannelName(ctx context.Context, channelID, name string) error
	DeleteChannel(ctx context.Context, channelID string) error
	SetPermission(ctx context.Context, channelID string, ow Overwrite) error
	RemovePermission(ctx context.Context, channelID, targetID string) error
	SendMessage(ctx context.Context, channelID string, msg Message) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, msg Message) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// FetchMessages returns up to limit messages older than before ("" for the
	// newest), newest first.
	FetchMessages(ctx context.Context, channelID, before string, limit int) ([]StoredMessage, error)
	BotUserID() string
}

// Artifact is an exported transcript ready to be attached to a message.
type Artifact struct {
	File
	MessageCount int
}

// TranscriptExporter turns a channel's history into a static export. A nil
// artifact with a nil error means there was nothing to export.
type TranscriptExporter interface {
	Export(ctx context.Context, channelID string) (*Artifact, error)
}

// ChannelExists reports whether channelID still resolves. Errors other than
// ErrChannelNotFound are returned as-is.
func ChannelExists(ctx context.Context, gw Gateway, channelID string) (bool, error) {
	if channelID == "" {
		return false, nil
	}
	_, err := gw.FetchChannel(ctx, channelID)
	if errors.Is(err, ErrChannelNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
