package tencent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feishu-assistant/pkg/market"
)

// Replays a recorded quote call. Skipped when the cassette is absent unless
// RECORD_CASSETTES=1, in which case the live endpoint is recorded.
func TestClient_Quote_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "tencent_quote")
	if _, err := os.Stat(cassette + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
	}

	r, err := recorder.New(cassette)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	client := NewClient(WithTransport(r))
	q, err := client.Quote(context.Background(), market.MustParseCode("sh600519"))
	assert.NoError(t, err)
	if assert.NotNil(t, q) {
		assert.NotEmpty(t, q.Name)
		assert.Greater(t, q.Price, 0.0)
	}
}
