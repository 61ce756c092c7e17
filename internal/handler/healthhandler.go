package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"feishu-assistant/internal/svc"
)

type healthResponse struct {
	Status string `json:"status"`
	Skills int    `json:"skills"`
}

func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if svcCtx.Registry != nil {
			resp.Skills = len(svcCtx.Registry.Schemas())
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
