package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	maxWebhookBody = 1 << 20
	commandTimeout = 2 * time.Minute
)

// CommandHandler is called when a user command is received.
type CommandHandler func(ctx context.Context, command string) string

// Replier answers a webhook event. *LineNotifier implements it.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, text string) error
}

type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Message    *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// WebhookHandler receives LINE webhook calls, verifies their signature and runs
// text messages as commands. Commands run in the background so the webhook is
// acknowledged immediately.
type WebhookHandler struct {
	secret  string
	replier Replier
	handle  CommandHandler
	base    context.Context
	wg      sync.WaitGroup
}

// NewWebhookHandler creates a handler. Values of ctx reach running commands; its
// cancellation does not, so Wait lets in-flight commands reply.
func NewWebhookHandler(ctx context.Context, channelSecret string, replier Replier, handle CommandHandler) *WebhookHandler {
	return &WebhookHandler{secret: channelSecret, replier: replier, handle: handle, base: ctx}
}

// VerifySignature checks the base64 HMAC-SHA256 of body against signature.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !VerifySignature(h.secret, body, r.Header.Get("X-Line-Signature")) {
		zap.L().Warn("webhook signature rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Events []webhookEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, ev := range payload.Events {
		if ev.Type != "message" || ev.Message == nil || ev.Message.Type != "text" {
			continue
		}
		text := strings.TrimSpace(ev.Message.Text)
		if text == "" {
			continue
		}
		h.wg.Add(1)
		go h.run(ev.ReplyToken, text)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) run(replyToken, text string) {
	defer h.wg.Done()
	// Shutdown must not cut off a reply already in flight; the timeout still bounds it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.base), commandTimeout)
	defer cancel()

	zap.L().Info("received command", zap.String("text", text))
	reply := h.handle(ctx, text)
	if reply == "" {
		return
	}
	// Reply tokens expire quickly, so slow commands fall back to push.
	if err := h.replier.Reply(ctx, replyToken, reply); err != nil {
		zap.L().Warn("reply failed, pushing instead", zap.Error(err))
		if err := h.replier.Push(ctx, reply); err != nil {
			zap.L().Error("send reply", zap.Error(err))
		}
	}
}

// Wait blocks until all running commands have finished.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}
