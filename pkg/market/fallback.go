package market

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"
)

type fallbackQuotes []QuoteSource

// FallbackQuotes tries each source in order and returns the first quote.
// ErrUnsupported from a source is skipped silently; other failures are
// logged. When every source fails the last error other than ErrUnsupported
// is returned.
func FallbackQuotes(sources ...QuoteSource) QuoteSource {
	return fallbackQuotes(sources)
}

func (f fallbackQuotes) Quote(ctx context.Context, sym Symbol) (*Quote, error) {
	err := ErrUnsupported
	for i, src := range f {
		q, qerr := src.Quote(ctx, sym)
		if qerr == nil {
			return q, nil
		}
		if ctx.Err() != nil {
			return nil, qerr
		}
		if errors.Is(qerr, ErrUnsupported) {
			continue
		}
		if i < len(f)-1 {
			logx.WithContext(ctx).Infof("market: quote source %d failed for %s, trying next: %v", i, sym.Code, qerr)
		}
		err = qerr
	}
	return nil, err
}
