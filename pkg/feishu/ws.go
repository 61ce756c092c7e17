package feishu

import (
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// NewLongConn returns a long-connection client that feeds events to d. The
// caller runs Start, which blocks and reconnects on its own. domain may be
// empty for the default Feishu host.
func NewLongConn(appID, appSecret, domain string, d *dispatcher.EventDispatcher) *larkws.Client {
	opts := []larkws.ClientOption{
		larkws.WithEventHandler(d),
		larkws.WithLogger(Logger()),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
		larkws.WithAutoReconnect(true),
	}
	if domain != "" {
		opts = append(opts, larkws.WithDomain(domain))
	}
	return larkws.NewClient(appID, appSecret, opts...)
}
