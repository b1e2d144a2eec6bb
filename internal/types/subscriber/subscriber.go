package subscriber

import "github.com/google/uuid"

// Subscriber is a user opted into voice-activity notifications for one guild.
// The (guild, user) pair is unique.
type Subscriber struct {
	ID      uuid.UUID `json:"id" db:"id"`
	GuildID string    `json:"guild_id" db:"guild_id"`
	UserID  string    `json:"user_id" db:"user_id"`
}
