// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/danielhkuo/circle-sketch/auth"
	"github.com/danielhkuo/circle-sketch/models"
)

// Messenger delivers outbound messages through the chat platform.
type Messenger interface {
	// Send posts to a channel. filename and file may be empty.
	Send(ctx context.Context, channelID, text, filename string, file []byte) error
	SendDM(ctx context.Context, memberID, text string) error
	LookupMember(ctx context.Context, memberID string) (models.Member, error)
}

var ErrBridgeStatus = errors.New("bridge returned an error status")

// DefaultRate is the outbound request budget per second.
const DefaultRate = 5

// Webhook talks to the messaging bridge over signed JSON requests.
type Webhook struct {
	baseURL string
	secret  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhook creates a client for the bridge at baseURL. perSecond caps
// outbound requests; bursts of up to twice that are allowed.
func NewWebhook(baseURL, secret string, perSecond float64) *Webhook {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	return &Webhook{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (w *Webhook) Send(ctx context.Context, channelID, text, filename string, file []byte) error {
	return w.do(ctx, http.MethodPost, "/send", models.SendRequest{
		ChannelID: channelID,
		Text:      text,
		Filename:  filename,
		File:      file,
	}, nil)
}

func (w *Webhook) SendDM(ctx context.Context, memberID, text string) error {
	return w.do(ctx, http.MethodPost, "/dm", models.DMRequest{MemberID: memberID, Text: text}, nil)
}

func (w *Webhook) LookupMember(ctx context.Context, memberID string) (models.Member, error) {
	var member models.Member
	if err := w.do(ctx, http.MethodGet, "/members/"+url.PathEscape(memberID), nil, &member); err != nil {
		return models.Member{}, err
	}
	if member.ID == "" {
		member.ID = memberID
	}
	return member, nil
}

func (w *Webhook) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode %s body: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.SignatureHeader, auth.Sign(payload, w.secret))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %d %s", ErrBridgeStatus, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

// Log writes outbound messages to the logger instead of delivering them.
// Used when no bridge is configured.
type Log struct{}

func (Log) Send(_ context.Context, channelID, text, filename string, file []byte) error {
	slog.Info("channel message", "channel_id", channelID, "text", text, "filename", filename, "bytes", len(file))
	return nil
}

func (Log) SendDM(_ context.Context, memberID, text string) error {
	slog.Info("direct message", "member_id", memberID, "text", text)
	return nil
}

func (Log) LookupMember(_ context.Context, memberID string) (models.Member, error) {
	return models.Member{ID: memberID, DisplayName: memberID}, nil
}
