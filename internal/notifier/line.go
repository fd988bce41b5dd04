package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultLineAPI = "https://api.line.me"

	// MaxMessageRunes is the LINE text message limit.
	MaxMessageRunes = 5000
	truncatedSuffix = "\n…(truncated)"
)

// ErrNoToken is returned when the channel access token is not configured.
var ErrNoToken = errors.New("LINE channel access token is not configured")

// LineNotifier sends messages via the LINE Messaging API.
type LineNotifier struct {
	AccessToken string
	UserID      string // empty means broadcast to every follower
	BaseURL     string
	Client      *http.Client
	Backoff     time.Duration // first retry delay, doubled per attempt
}

// NewLineNotifier creates a notifier with optional proxy support.
func NewLineNotifier(accessToken, userID, proxyURL string) *LineNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &LineNotifier{
		AccessToken: accessToken,
		UserID:      userID,
		BaseURL:     defaultLineAPI,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Backoff: time.Second,
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func messages(text string) []textMessage {
	return []textMessage{{Type: "text", Text: Truncate(text)}}
}

// Truncate shortens text to MaxMessageRunes, marking the cut.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxMessageRunes {
		return text
	}
	keep := MaxMessageRunes - len([]rune(truncatedSuffix))
	return string(runes[:keep]) + truncatedSuffix
}

// Push sends text to the configured user, or broadcasts when no user is set.
func (n *LineNotifier) Push(ctx context.Context, text string) error {
	if n.UserID == "" {
		return n.post(ctx, "/v2/bot/message/broadcast", map[string]any{
			"messages": messages(text),
		})
	}
	return n.post(ctx, "/v2/bot/message/push", map[string]any{
		"to":       n.UserID,
		"messages": messages(text),
	})
}

// Reply answers a webhook event through its reply token.
func (n *LineNotifier) Reply(ctx context.Context, replyToken, text string) error {
	return n.post(ctx, "/v2/bot/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   messages(text),
	})
}

func (n *LineNotifier) post(ctx context.Context, path string, payload any) error {
	if n.AccessToken == "" {
		return ErrNoToken
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(n.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.AccessToken)

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("LINE API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry pushes a message with exponential backoff retry.
func (n *LineNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := n.Push(ctx, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNoToken) {
			return err
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := n.Backoff * time.Duration(1<<uint(i))
		zap.L().Warn("LINE send failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max", maxRetries+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}
