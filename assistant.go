package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"feishu-assistant/internal/cli"
	"feishu-assistant/internal/config"
	"feishu-assistant/internal/handler"
	"feishu-assistant/internal/svc"
	"feishu-assistant/pkg/feishu"
)

var configFile = flag.String("f", "etc/assistant.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()
	cli.LogConfigSummary(cfg)

	ctx := svc.NewServiceContext(*cfg)
	handler.RegisterHandlers(server, ctx)

	sweeper := cron.New()
	_, err := sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.SessionSweepInterval()), func() {
		if n := ctx.Sessions.Sweep(context.Background()); n > 0 {
			logx.Infof("session sweep: dropped %d idle sessions", n)
		}
	})
	if err != nil {
		logx.Must(err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.LongConnection() {
		conn := feishu.NewLongConn(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.BaseURL, ctx.Events)
		go func() {
			if err := conn.Start(context.Background()); err != nil {
				logx.Errorf("feishu long connection stopped: %v", err)
			}
		}()
	}

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
