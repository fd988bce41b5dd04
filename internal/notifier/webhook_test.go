package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testSecret = "channel-secret"

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type fakeReplier struct {
	mu       sync.Mutex
	replyErr error
	replies  map[string]string
	pushes   []string
}

func (f *fakeReplier) Reply(_ context.Context, token, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	if f.replies == nil {
		f.replies = map[string]string{}
	}
	f.replies[token] = text
	return nil
}

func (f *fakeReplier) Push(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, text)
	return nil
}

func echo(_ context.Context, cmd string) string {
	if cmd == "/silent" {
		return ""
	}
	return "got " + cmd
}

const webhookBody = `{"events":[
	{"type":"message","replyToken":"r1","message":{"type":"text","text":" /analyze 7203 "}},
	{"type":"message","replyToken":"r2","message":{"type":"sticker"}},
	{"type":"follow","replyToken":"r3"},
	{"type":"message","replyToken":"r4","message":{"type":"text","text":"/silent"}}
]}`

func post(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/line/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	good := sign(string(body))
	cases := []struct {
		name   string
		secret string
		sig    string
		want   bool
	}{
		{"valid", testSecret, good, true},
		{"wrong secret", "other", good, false},
		{"not base64", testSecret, "%%%", false},
		{"empty signature", testSecret, "", false},
		{"empty secret", "", good, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := VerifySignature(c.secret, body, c.sig); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestWebhook_DispatchesTextMessages(t *testing.T) {
	r := &fakeReplier{}
	h := NewWebhookHandler(context.Background(), testSecret, r, echo)

	rec := post(h, webhookBody, sign(webhookBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	h.Wait()

	if len(r.replies) != 1 || r.replies["r1"] != "got /analyze 7203" {
		t.Errorf("unexpected replies %v", r.replies)
	}
	if len(r.pushes) != 0 {
		t.Errorf("unexpected pushes %v", r.pushes)
	}
}

func TestWebhook_ReplyFailureFallsBackToPush(t *testing.T) {
	r := &fakeReplier{replyErr: errors.New("invalid reply token")}
	h := NewWebhookHandler(context.Background(), testSecret, r, echo)

	post(h, webhookBody, sign(webhookBody))
	h.Wait()

	if len(r.pushes) != 1 || r.pushes[0] != "got /analyze 7203" {
		t.Errorf("expected push fallback, got %v", r.pushes)
	}
}

func TestWebhook_Rejects(t *testing.T) {
	h := NewWebhookHandler(context.Background(), testSecret, &fakeReplier{}, echo)

	if rec := post(h, webhookBody, sign("tampered")); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: status = %d", rec.Code)
	}
	if rec := post(h, webhookBody, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: status = %d", rec.Code)
	}
	if rec := post(h, "{not json", sign("{not json")); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/line/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d", rec.Code)
	}
}

// ctxReplier fails like a real client when its context is done.
type ctxReplier struct {
	fakeReplier
}

func (c *ctxReplier) Reply(ctx context.Context, token, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.fakeReplier.Reply(ctx, token, text)
}

func (c *ctxReplier) Push(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.fakeReplier.Push(ctx, text)
}

func TestWebhook_RepliesAfterShutdownStarts(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	slow := func(ctx context.Context, cmd string) string {
		<-release
		return "done " + cmd
	}
	r := &ctxReplier{}
	h := NewWebhookHandler(base, testSecret, r, slow)

	post(h, webhookBody, sign(webhookBody))
	cancel()
	close(release)
	h.Wait()

	if r.replies["r1"] != "done /analyze 7203" {
		t.Errorf("in-flight command lost its reply: replies=%v pushes=%v", r.replies, r.pushes)
	}
}
