package testutil

import (
	"context"
	"fmt"
	"sync"

	"artstreakbot/internal/gateway"
)

// SentMessage records one outbound delivery made through the FakeGateway.
type SentMessage struct {
	ChannelID  string
	Content    string
	Attachment *gateway.Attachment
}

// FakeGateway records deliveries instead of making them. SendErr, when set,
// makes every delivery fail, for exercising the commit-before-announce
// guarantee.
type FakeGateway struct {
	mu       sync.Mutex
	Messages []SentMessage
	DMs      map[string]string
	Guilds   []string
	SendErr  error

	nextMessageID int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{DMs: make(map[string]string)}
}

var _ gateway.Gateway = (*FakeGateway)(nil)

func (g *FakeGateway) SendMessage(ctx context.Context, channelID, content string) (*gateway.MessageRef, error) {
	return g.record(SentMessage{ChannelID: channelID, Content: content})
}

func (g *FakeGateway) SendFile(ctx context.Context, channelID, content string, att *gateway.Attachment) (*gateway.MessageRef, error) {
	return g.record(SentMessage{ChannelID: channelID, Content: content, Attachment: att})
}

func (g *FakeGateway) OpenDM(ctx context.Context, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SendErr != nil {
		return "", g.SendErr
	}
	ch, ok := g.DMs[userID]
	if !ok {
		ch = "dm-" + userID
		g.DMs[userID] = ch
	}
	return ch, nil
}

func (g *FakeGateway) GuildIDs(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Guilds...), nil
}

// Sent returns a snapshot of everything delivered so far.
func (g *FakeGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.Messages...)
}

func (g *FakeGateway) record(msg SentMessage) (*gateway.MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SendErr != nil {
		return nil, g.SendErr
	}
	g.Messages = append(g.Messages, msg)
	g.nextMessageID++
	id := fmt.Sprintf("msg-%d", g.nextMessageID)
	return &gateway.MessageRef{
		ChannelID: msg.ChannelID,
		MessageID: id,
		Link:      fmt.Sprintf("https://chat.example/%s/%s", msg.ChannelID, id),
	}, nil
}
