package news

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/errorx"
	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/pkg/feishu"
)

// Push sends d to every recipient as a card and returns the open_ids that
// received it. Failures are collected; one bad recipient does not stop the
// rest.
func Push(ctx context.Context, sender feishu.Sender, recipients []string, d *Digest) ([]string, error) {
	card := Card(d)
	var be errorx.BatchError
	delivered := make([]string, 0, len(recipients))
	for _, openID := range recipients {
		if openID == "" {
			continue
		}
		if err := sender.SendCard(ctx, openID, card); err != nil {
			be.Add(fmt.Errorf("send digest to %s: %w", openID, err))
			continue
		}
		logx.WithContext(ctx).Infof("news: digest sent to %s", openID)
		delivered = append(delivered, openID)
	}
	return delivered, be.Err()
}
