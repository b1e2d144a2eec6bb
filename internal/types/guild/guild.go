package guild

// Guild is one community the bot serves. The id is the chat platform's guild
// id, assigned at registration time, never generated locally.
type Guild struct {
	ID           string  `json:"id" db:"id"`
	ArtChannelID *string `json:"art_channel_id" db:"art_channel_id"`
}
