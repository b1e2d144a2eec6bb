package streak

import "errors"

// ErrUnsupportedMedia rejects submission attachments that are neither images
// nor audio.
var ErrUnsupportedMedia = errors.New("unsupported media format")

// ConfigError reports a guild misconfiguration that aborts a command before
// any state is written, such as a missing art channel.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// NotFoundError reports a missing guild, streak or user referenced by a
// command. Surfaced to the invoker as a "nothing found" reply, never retried.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }
