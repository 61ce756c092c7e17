package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"feishu-assistant/internal/svc"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/feishu/events",
				Handler: FeishuEventsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/healthz",
				Handler: HealthHandler(serverCtx),
			},
		},
	)
}
