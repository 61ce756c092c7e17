package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feishu-assistant/internal/model"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newStore(t *testing.T) model.SessionsModel {
	t.Helper()
	conn, err := model.NewConn(model.DriverSQLite, fmt.Sprintf("file:session_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, model.Migrate(context.Background(), conn))
	return model.NewSessionsModel(conn)
}

func TestAppendCapsHistory(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, WithMaxHistory(3))
	for i := 0; i < 5; i++ {
		m.Append(ctx, "u1", RoleUser, fmt.Sprintf("m%d", i))
	}
	h := m.History(ctx, "u1")
	require.Len(t, h, 3)
	assert.Equal(t, "m2", h[0].Content)
	assert.Equal(t, "m4", h[2].Content)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil)
	m.Append(ctx, "u1", RoleUser, "hi")
	s := m.Get(ctx, "u1")
	s.History[0].Content = "changed"
	assert.Equal(t, "hi", m.History(ctx, "u1")[0].Content)
}

func TestWriteThroughAndRestore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	clk := &clock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}

	m := NewManager(store, WithClock(clk.now))
	m.Append(ctx, "u1", RoleUser, "/market US")
	m.Append(ctx, "u1", RoleAssistant, "美股行情")
	m.SetState(ctx, "u1", "last_market", "US")

	// A fresh manager, as after a restart, restores from the store.
	restarted := NewManager(store, WithClock(clk.now))
	s := restarted.Get(ctx, "u1")
	require.Len(t, s.History, 2)
	assert.Equal(t, RoleAssistant, s.History[1].Role)
	assert.Equal(t, "US", s.State["last_market"])

	restarted.Clear(ctx, "u1")
	assert.Empty(t, NewManager(store).History(ctx, "u1"))
}

func TestIdleSessionsExpire(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	clk := &clock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	m := NewManager(store, WithClock(clk.now), WithIdleTTL(time.Hour))

	m.Append(ctx, "old", RoleUser, "a")
	clk.t = clk.t.Add(50 * time.Minute)
	m.Append(ctx, "fresh", RoleUser, "b")
	clk.t = clk.t.Add(20 * time.Minute)

	assert.Equal(t, 1, m.Sweep(ctx))
	assert.Equal(t, 1, m.Len())
	assert.Empty(t, NewManager(store, WithClock(clk.now), WithIdleTTL(time.Hour)).History(ctx, "old"))

	clk.t = clk.t.Add(2 * time.Hour)
	assert.Empty(t, m.History(ctx, "fresh"), "idle session read back empty")
}
