package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const relaySecretHeader = "X-Relay-Secret"

// attachmentSizeLimit caps how much of a user attachment is buffered before
// forwarding. Matches the platform's own upload ceiling.
const attachmentSizeLimit = 25 << 20

// RelayGateway talks to the chat platform through an HTTP relay process. The
// bot posts JSON requests to the relay; the relay owns the platform session
// and answers with delivery metadata.
type RelayGateway struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewRelayGateway(baseURL, secret string) *RelayGateway {
	return &RelayGateway{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Gateway = (*RelayGateway)(nil)

type sendRequest struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

func (g *RelayGateway) SendMessage(ctx context.Context, channelID, content string) (*MessageRef, error) {
	body, err := json.Marshal(sendRequest{ChannelID: channelID, Content: content})
	if err != nil {
		return nil, fmt.Errorf("failed to encode send request: %w", err)
	}

	ref := &MessageRef{}
	if err := g.post(ctx, "/messages", "application/json", bytes.NewReader(body), ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (g *RelayGateway) SendFile(ctx context.Context, channelID, content string, att *Attachment) (*MessageRef, error) {
	data, err := g.fetchAttachment(ctx, att)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("channel_id", channelID); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.WriteField("content", content); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	fw, err := mw.CreateFormFile("file", att.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	ref := &MessageRef{}
	if err := g.post(ctx, "/messages", mw.FormDataContentType(), &buf, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (g *RelayGateway) OpenDM(ctx context.Context, userID string) (string, error) {
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return "", fmt.Errorf("failed to encode dm request: %w", err)
	}

	var resp struct {
		ChannelID string `json:"channel_id"`
	}
	if err := g.post(ctx, "/dm-channels", "application/json", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	return resp.ChannelID, nil
}

func (g *RelayGateway) GuildIDs(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/guilds", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build guilds request: %w", err)
	}
	req.Header.Set(relaySecretHeader, g.secret)

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned status %d", res.StatusCode)
	}

	var resp struct {
		GuildIDs []string `json:"guild_ids"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode guilds response: %w", err)
	}
	return resp.GuildIDs, nil
}

// fetchAttachment pulls the user's file from the platform CDN so it can be
// re-posted in the bot's reply.
func (g *RelayGateway) fetchAttachment(ctx context.Context, att *Attachment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment request: %w", err)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment fetch returned status %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, attachmentSizeLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}

func (g *RelayGateway) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(relaySecretHeader, g.secret)

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Warn().Str("path", path).Int("status", res.StatusCode).Msg("relay rejected request")
		return fmt.Errorf("relay returned status %d", res.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode relay response: %w", err)
		}
	}
	return nil
}
