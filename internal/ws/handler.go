package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/labcards/internal/catalog"
	"github.com/DoyleJ11/labcards/internal/engine"
	"github.com/DoyleJ11/labcards/internal/session"
	"github.com/DoyleJ11/labcards/internal/types"
)

const (
	DefaultWriteTimeout = 3 * time.Second
	DefaultPingInterval = 25 * time.Second
	readLimit           = 4096
)

type Options struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	return o
}

func Handler(sess *session.Session, log *zap.Logger, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		clientID := uuid.NewString()
		clog := log.With(zap.String("client_id", clientID), zap.String("remote", r.RemoteAddr))

		// Leave queues behind Join, so it also undoes a Join we gave up on.
		defer sess.Leave(clientID)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub, _, err := sess.Join(ctx, clientID)
		if err != nil {
			clog.Warn("join failed", zap.Error(err))
			conn.Close(websocket.StatusTryAgainLater, "session unavailable")
			return
		}
		clog.Info("participant connected")
		defer clog.Info("participant disconnected")

		// Writer goroutine: the first event is always the join snapshot.
		go func() {
			for evt := range sub.Events() {
				if err := write(ctx, conn, opts.WriteTimeout, types.FromEvent(evt)); err != nil {
					clog.Info("delivery failed", zap.Int("version", evt.Version), zap.Error(err))
					cancel()
					return
				}
			}
			if ctx.Err() == nil {
				// dropped by the hub as too slow, or the session stopped
				conn.Close(websocket.StatusTryAgainLater, "subscription ended")
			}
		}()

		go keepAlive(ctx, cancel, conn, opts, clog)

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Debug("client closed")
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reply(ctx, conn, opts, clog, types.ErrorMessage(types.CodeBadRequest, "bad json"))
				continue
			}

			switch cm.Type {
			case "draw":
				_, err = sess.Draw(ctx)
			case "reset":
				_, err = sess.Reset(ctx)
			case "redraw":
				suit, _ := catalog.ParseSuit(cm.Suit)
				_, err = sess.Redraw(ctx, suit)
			default:
				reply(ctx, conn, opts, clog, types.ErrorMessage(types.CodeBadRequest, "unknown type"))
				continue
			}
			if err != nil {
				reply(ctx, conn, opts, clog, errorMessage(err))
			}
		}
	}
}

func errorMessage(err error) types.ServerMessage {
	switch {
	case errors.Is(err, engine.ErrExhausted):
		return types.ErrorMessage(types.CodeExhausted, engine.ErrExhausted.Error())
	case errors.Is(err, engine.ErrRedrawNotAllowed):
		return types.ErrorMessage(types.CodeRedrawNotAllowed, err.Error())
	case errors.Is(err, engine.ErrUnsupportedCommand):
		return types.ErrorMessage(types.CodeBadRequest, err.Error())
	default:
		// closed session, cancelled or timed out waits
		return types.ErrorMessage(types.CodeUnavailable, "session unavailable")
	}
}

func reply(ctx context.Context, conn *websocket.Conn, opts Options, log *zap.Logger, msg types.ServerMessage) {
	if err := write(ctx, conn, opts.WriteTimeout, msg); err != nil {
		log.Debug("reply failed", zap.String("code", msg.Code), zap.Error(err))
	}
}

func write(ctx context.Context, conn *websocket.Conn, timeout time.Duration, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func keepAlive(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, opts Options, log *zap.Logger) {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, opts.WriteTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				log.Debug("ping failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}
