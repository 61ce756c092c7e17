package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/threading"

	"feishu-assistant/internal/bot"
	"feishu-assistant/internal/intent"
	"feishu-assistant/internal/session"
	"feishu-assistant/internal/skill"
	"feishu-assistant/internal/svc"
	"feishu-assistant/pkg/feishu"
)

const token = "verify-token"

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSender) SendText(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSender) SendCard(context.Context, string, *feishu.Card) error { return nil }

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

type helpSkill struct{}

func (helpSkill) Schema() skill.Schema { return skill.Schema{Name: skill.Help, Description: "help"} }

func (helpSkill) Execute(context.Context, skill.Invocation) skill.Result {
	return skill.OK("🤖 我可以帮你")
}

func newServiceContext(t *testing.T, encryptKey string) (*svc.ServiceContext, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	reg := skill.NewRegistry()
	reg.MustRegister(helpSkill{})
	rec, err := intent.NewRecognizer(reg, nil)
	require.NoError(t, err)
	d, err := bot.NewDispatcher(session.NewManager(nil), rec, reg, sender)
	require.NoError(t, err)
	svcCtx := &svc.ServiceContext{
		Registry:   reg,
		Dispatcher: d,
		Runner:     threading.NewTaskRunner(2),
	}
	svcCtx.Events = feishu.NewEventDispatcher(token, encryptKey, svcCtx.Deliver)
	return svcCtx, sender
}

func messageBody(t *testing.T, messageID, senderType, text string) []byte {
	t.Helper()
	content, err := json.Marshal(map[string]string{"text": text})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"schema": "2.0",
		"header": map[string]any{"event_id": "ev_" + messageID, "event_type": "im.message.receive_v1", "token": token},
		"event": map[string]any{
			"sender": map[string]any{"sender_id": map[string]any{"open_id": "ou_1"}, "sender_type": senderType},
			"message": map[string]any{
				"message_id": messageID, "chat_id": "oc_1", "chat_type": "p2p",
				"message_type": feishu.MsgTypeText, "content": string(content),
			},
		},
	})
	require.NoError(t, err)
	return body
}

func post(h http.HandlerFunc, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/feishu/events", bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestURLVerification(t *testing.T) {
	svcCtx, _ := newServiceContext(t, "")
	h := FeishuEventsHandler(svcCtx)

	rec := post(h, []byte(`{"type":"url_verification","challenge":"abc","token":"verify-token"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"abc"}`, rec.Body.String())

	rec = post(h, []byte(`{"type":"url_verification","challenge":"abc","token":"wrong"}`), nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = post(h, []byte(`not json`), nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestMessageDispatchedOnce(t *testing.T) {
	svcCtx, sender := newServiceContext(t, "")
	h := FeishuEventsHandler(svcCtx)

	body := messageBody(t, "om_1", "user", "@_user_1 /help")
	for i := 0; i < 3; i++ {
		rec := post(h, body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sender.count())
}

func TestSkippedMessages(t *testing.T) {
	cases := []struct {
		name       string
		senderType string
		msgType    string
	}{
		{"bot sender", feishu.SenderTypeApp, feishu.MsgTypeText},
		{"image", "user", "image"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svcCtx, sender := newServiceContext(t, "")
			body := messageBody(t, fmt.Sprintf("om_skip_%d", i), tc.senderType, "/help")
			if tc.msgType != feishu.MsgTypeText {
				body = bytes.Replace(body, []byte(`"message_type":"text"`), []byte(`"message_type":"`+tc.msgType+`"`), 1)
			}
			rec := post(FeishuEventsHandler(svcCtx), body, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			time.Sleep(50 * time.Millisecond)
			assert.Zero(t, sender.count())
		})
	}
}

func TestBadSignatureRejected(t *testing.T) {
	svcCtx, sender := newServiceContext(t, "encrypt-key")
	header := map[string]string{
		"X-Lark-Request-Timestamp": "1700000000",
		"X-Lark-Request-Nonce":     "nonce",
		"X-Lark-Signature":         "deadbeef",
	}
	rec := post(FeishuEventsHandler(svcCtx), messageBody(t, "om_sig", "user", "/help"), header)
	assert.NotEqual(t, http.StatusOK, rec.Code)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sender.count())
}

func TestHealth(t *testing.T) {
	svcCtx, _ := newServiceContext(t, "")
	rec := httptest.NewRecorder()
	HealthHandler(svcCtx)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","skills":1}`, rec.Body.String())
}
