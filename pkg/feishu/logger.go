package feishu

import (
	"context"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/zeromicro/go-zero/core/logx"
)

// logxLogger routes SDK logs into logx. logx has no warn level; warnings
// are logged as errors so they stay visible at the default level.
type logxLogger struct{}

var _ larkcore.Logger = logxLogger{}

// Logger returns the SDK logger used by every client built here.
func Logger() larkcore.Logger { return logxLogger{} }

func (logxLogger) Debug(ctx context.Context, args ...interface{}) {
	logx.WithContext(ctx).Debug("lark: " + fmt.Sprint(args...))
}

func (logxLogger) Info(ctx context.Context, args ...interface{}) {
	logx.WithContext(ctx).Info("lark: " + fmt.Sprint(args...))
}

func (logxLogger) Warn(ctx context.Context, args ...interface{}) {
	logx.WithContext(ctx).Error("lark: " + fmt.Sprint(args...))
}

func (logxLogger) Error(ctx context.Context, args ...interface{}) {
	logx.WithContext(ctx).Error("lark: " + fmt.Sprint(args...))
}
