package hub

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, string) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello frame
	require.NoError(t, ws.ReadJSON(&hello))
	require.NotEmpty(t, hello.ConnectionID)
	_, err = uuid.Parse(hello.ConnectionID)
	require.NoError(t, err, "connection id frame carries a uuid")

	return ws, hello.ConnectionID
}

func TestHubRoutesMessagesToConnection(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ws, id := dialHub(t, h)

	n := h.Notifier(id)
	n.Notify(context.Background(), "Validation started")
	n.Notify(context.Background(), "10% completed")

	var f frame
	require.NoError(t, ws.ReadJSON(&f))
	assert.Equal(t, "Validation started", f.Message)
	require.NoError(t, ws.ReadJSON(&f))
	assert.Equal(t, "10% completed", f.Message)
}

func TestHubUnknownConnectionDiscards(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Neither call may block or panic.
	h.Notifier("").Notify(context.Background(), "dropped")
	h.Notifier(uuid.NewString()).Notify(context.Background(), "dropped")
}

func TestHubFullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, id := dialHub(t, h)

	n := h.Notifier(id)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer*4; i++ {
			n.Notify(context.Background(), "burst")
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify blocked on a saturated connection")
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ws, id := dialHub(t, h)

	h.Close()

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	// Late notifications after close are discarded.
	h.Notifier(id).Notify(context.Background(), "too late")
}
