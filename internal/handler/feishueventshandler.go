package handler

import (
	"net/http"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/core/httpserverext"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"

	"feishu-assistant/internal/svc"
	"feishu-assistant/pkg/feishu"
)

// FeishuEventsHandler serves the webhook transport. The SDK answers the url
// challenge, decrypts, checks token and signature, then hands messages to
// svc.Deliver which returns without waiting for the reply.
func FeishuEventsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return httpserverext.NewEventHandlerFunc(svcCtx.Events,
		larkevent.WithLogger(feishu.Logger()),
		larkevent.WithLogLevel(larkcore.LogLevelInfo),
	)
}
