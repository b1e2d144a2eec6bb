package gateway

import "context"

// Attachment is a user-submitted file as reported by the chat platform.
type Attachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// MessageRef points back at a delivered message.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Link      string `json:"link"`
}

// CommandEvent is one inbound command invocation relayed from the chat
// platform.
type CommandEvent struct {
	Command      string      `json:"command"`
	GuildID      string      `json:"guild_id"`
	ChannelID    string      `json:"channel_id"`
	UserID       string      `json:"user_id"`
	TargetUserID string      `json:"target_user_id,omitempty"`
	Attachment   *Attachment `json:"attachment,omitempty"`
	IsAdmin      bool        `json:"is_admin"`
}

// VoiceStateEvent is one inbound voice-state change. Population is the total
// member count across the guild's non-AFK voice channels after the change.
type VoiceStateEvent struct {
	GuildID       string `json:"guild_id"`
	GuildName     string `json:"guild_name"`
	UserID        string `json:"user_id"`
	PrevChannelID string `json:"prev_channel_id"`
	NewChannelID  string `json:"new_channel_id"`
	Population    int    `json:"population"`
}

// GuildEvent reports the bot joining or leaving a guild.
type GuildEvent struct {
	GuildID string `json:"guild_id"`
	Removed bool   `json:"removed"`
}

// Gateway is the outbound half of the chat-platform collaborator. Every call
// is network I/O; callers must never hold store transactions across one.
type Gateway interface {
	// SendMessage posts content to a channel.
	SendMessage(ctx context.Context, channelID, content string) (*MessageRef, error)
	// SendFile fetches the attachment and posts it to a channel with a caption.
	SendFile(ctx context.Context, channelID, content string, att *Attachment) (*MessageRef, error)
	// OpenDM returns the id of a direct-message channel for a user, creating
	// one when none exists.
	OpenDM(ctx context.Context, userID string) (string, error)
	// GuildIDs lists the guilds the bot is currently a member of.
	GuildIDs(ctx context.Context) ([]string, error)
}
