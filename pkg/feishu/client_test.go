package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenAPI struct {
	appID      string
	tokenCalls atomic.Int32
	sendCode   int

	mu        sync.Mutex
	lastAuth  string
	lastQuery string
	lastBody  map[string]string
}

func (f *fakeOpenAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		switch r.URL.Path {
		case "/open-apis/auth/v3/tenant_access_token/internal":
			f.tokenCalls.Add(1)
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, f.appID, body["app_id"])
			assert.Equal(t, "secret", body["app_secret"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 0, "msg": "ok", "expire": 7200, "tenant_access_token": "t-1",
			})
		case "/open-apis/im/v1/messages":
			body := map[string]string{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.mu.Lock()
			f.lastAuth = r.Header.Get("Authorization")
			f.lastQuery = r.URL.RawQuery
			f.lastBody = body
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": f.sendCode, "msg": "x", "data": map[string]string{"message_id": "om_1"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// newTestClient uses the test name as app id so SDK token caches never
// leak between tests.
func newTestClient(t *testing.T, api *fakeOpenAPI) *Client {
	t.Helper()
	api.appID = strings.ReplaceAll(t.Name(), "/", "_")
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)
	return NewClient(api.appID, "secret", WithBaseURL(server.URL))
}

func TestSendText(t *testing.T) {
	api := &fakeOpenAPI{}
	client := newTestClient(t, api)

	require.NoError(t, client.SendText(context.Background(), "ou_1", "你好"))
	assert.Equal(t, "Bearer t-1", api.lastAuth)
	assert.Equal(t, "receive_id_type=open_id", api.lastQuery)
	assert.Equal(t, "ou_1", api.lastBody["receive_id"])
	assert.Equal(t, MsgTypeText, api.lastBody["msg_type"])
	assert.JSONEq(t, `{"text":"你好"}`, api.lastBody["content"])

	require.NoError(t, client.SendText(context.Background(), "ou_2", "再见"))
	assert.EqualValues(t, 1, api.tokenCalls.Load(), "tenant token is cached")
}

func TestSendCard(t *testing.T) {
	api := &fakeOpenAPI{}
	client := newTestClient(t, api)

	card := NewCard("美股行情", "blue").Markdown("🟢 **S&P 500**: 5100.50 (+2.01%)").Divider()
	require.NoError(t, client.SendCard(context.Background(), "ou_1", card))
	assert.Equal(t, MsgTypeInteractive, api.lastBody["msg_type"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(api.lastBody["content"]), &decoded))
	header := decoded["header"].(map[string]any)
	assert.Equal(t, "blue", header["template"])
	assert.Len(t, decoded["elements"], 2)
}

func TestSendAPIError(t *testing.T) {
	api := &fakeOpenAPI{sendCode: 230001}
	client := newTestClient(t, api)

	err := client.SendText(context.Background(), "ou_1", "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 230001, apiErr.Code)
	assert.Equal(t, "x", apiErr.Msg)
}

func TestSendRequiresReceiver(t *testing.T) {
	client := NewClient("app", "secret")
	require.Error(t, client.SendText(context.Background(), "", "hi"))
}
