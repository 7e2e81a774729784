package ws

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/labcards/internal/catalog"
	"github.com/DoyleJ11/labcards/internal/engine"
	"github.com/DoyleJ11/labcards/internal/hub"
	"github.com/DoyleJ11/labcards/internal/session"
	"github.com/DoyleJ11/labcards/internal/types"
)

func newServer(t *testing.T) (*httptest.Server, *session.Session) {
	return newServerWith(t, 16, Options{}, "")
}

func newServerWith(t *testing.T, outbox int, opts Options, text string) (*httptest.Server, *session.Session) {
	t.Helper()
	var cards []catalog.Card
	for _, s := range catalog.SuitOrder {
		cards = append(cards, catalog.Card{Suit: s, Name: strings.ToLower(string(s)), Text: text, URL: "https://example.com/" + string(s)})
	}
	set, err := catalog.NewSet(cards)
	require.NoError(t, err)

	// handler goroutines can outlive the test, so they must not log through t
	log := zap.NewNop()
	sess := session.New(context.Background(), session.Config{
		Catalog: set,
		Mode:    engine.ModeSuitSequence,
		Hub:     hub.NewHub(log, outbox),
		Logger:  log,
	})
	srv := httptest.NewServer(Handler(sess, log, opts))
	t.Cleanup(func() {
		sess.Close()
		srv.Close()
	})
	return srv, sess
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func recv(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

func TestHandler_SnapshotThenDrawn(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv)

	first := recv(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Empty(t, first.Snapshot.Revealed)
	assert.Equal(t, 5, first.Snapshot.Total)

	send(t, conn, types.ClientMessage{Type: "draw"})
	drawn := recv(t, conn)
	assert.Equal(t, "drawn", drawn.Type)
	assert.Equal(t, 1, drawn.Version)
	require.NotNil(t, drawn.Card)
	assert.Equal(t, "TOUCHSTONE", drawn.Card.Suit)
	assert.Equal(t, "https://example.com/TOUCHSTONE", drawn.Card.URL)
	require.NotNil(t, drawn.Position)
	assert.Equal(t, 0, *drawn.Position)
}

func TestHandler_BroadcastAndExhaustedUnicast(t *testing.T) {
	srv, sess := newServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	recv(t, a)
	recv(t, b)

	for _, want := range catalog.SuitOrder {
		send(t, a, types.ClientMessage{Type: "draw"})
		gotA := recv(t, a)
		gotB := recv(t, b)
		assert.Equal(t, gotA, gotB)
		assert.Equal(t, string(want), gotA.Card.Suit)
	}

	send(t, a, types.ClientMessage{Type: "draw"})
	errMsg := recv(t, a)
	assert.Equal(t, "error", errMsg.Type)
	assert.Equal(t, types.CodeExhausted, errMsg.Code)

	// b hears about the reset next, not the error
	send(t, a, types.ClientMessage{Type: "reset"})
	assert.Equal(t, "reset", recv(t, a).Type)
	reset := recv(t, b)
	assert.Equal(t, "reset", reset.Type)
	require.NotNil(t, reset.Snapshot)
	assert.Empty(t, reset.Snapshot.Revealed)

	view, err := sess.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.NumClients)
}

func TestHandler_LateJoinerSnapshot(t *testing.T) {
	srv, sess := newServer(t)
	for i := 0; i < 2; i++ {
		_, err := sess.Draw(context.Background())
		require.NoError(t, err)
	}

	conn := dial(t, srv)
	snap := recv(t, conn)
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, 2, snap.Version)
	require.Len(t, snap.Snapshot.Revealed, 2)
	assert.Equal(t, "WORKSHOP", snap.Snapshot.Revealed[1].Suit)
	assert.False(t, snap.Snapshot.CanRedraw["WORKSHOP"], "single card suits cannot redraw")
}

func TestHandler_BadRequests(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv)
	recv(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, types.CodeBadRequest, recv(t, conn).Code)

	send(t, conn, types.ClientMessage{Type: "shuffle"})
	assert.Equal(t, types.CodeBadRequest, recv(t, conn).Code)

	send(t, conn, types.ClientMessage{Type: "redraw", Suit: "tool"})
	assert.Equal(t, types.CodeRedrawNotAllowed, recv(t, conn).Code)
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	srv, sess := newServer(t)
	conn := dial(t, srv)
	recv(t, conn)
	_ = conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		v, err := sess.View(context.Background())
		return err == nil && v.NumClients == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHandler_SlowClientIsDisconnected(t *testing.T) {
	// Cards big enough that one event outgrows the loopback socket buffers,
	// so the writer stalls while the client is not reading.
	big := strings.Repeat("x", 32<<20)
	srv, sess := newServerWith(t, 1, Options{WriteTimeout: 10 * time.Second}, big)
	conn := dial(t, srv)
	conn.SetReadLimit(128 << 20)
	assert.Equal(t, "snapshot", recv(t, conn).Type)

	ctx := context.Background()
	dropped := false
	for range catalog.SuitOrder {
		_, err := sess.Draw(ctx)
		require.NoError(t, err)
		v, err := sess.View(ctx)
		require.NoError(t, err)
		if v.NumClients == 0 {
			dropped = true
			break
		}
	}
	require.True(t, dropped, "expected the stalled participant to be dropped")

	// Reading again drains what was already queued, then the close frame.
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		_, _, err := conn.Read(rctx)
		if err != nil {
			assert.Equal(t, websocket.StatusTryAgainLater, websocket.CloseStatus(err), "read error: %v", err)
			return
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{err: engine.ErrExhausted, code: types.CodeExhausted},
		{err: fmt.Errorf("%w: TOOL already redrawn", engine.ErrRedrawNotAllowed), code: types.CodeRedrawNotAllowed},
		{err: engine.ErrUnsupportedCommand, code: types.CodeBadRequest},
		{err: session.ErrClosed, code: types.CodeUnavailable},
		{err: context.Canceled, code: types.CodeUnavailable},
		{err: context.DeadlineExceeded, code: types.CodeUnavailable},
	}
	for _, tc := range cases {
		msg := errorMessage(tc.err)
		assert.Equal(t, "error", msg.Type)
		assert.Equal(t, tc.code, msg.Code, tc.err.Error())
	}
}
