package game

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	watchPollInterval  = 500 * time.Millisecond
	watchPingInterval  = 30 * time.Second
	watchWriteDeadline = 10 * time.Second
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WatchHandler upgrades to a websocket and streams the room view after
// every observed version change. Players and spectators share the same
// stream; it is read-only, so membership is not required to watch.
func (h *Handler) WatchHandler(ctx *gin.Context) {
	if _, ok := requireActor(ctx); !ok {
		return
	}
	kind := GameKind(ctx.Param("kind"))
	roomID := ctx.Param("roomid")

	// Verify the room before paying for the upgrade.
	if _, err := h.lifecycle.Get(ctx.Request.Context(), kind, roomID); err != nil {
		writeGameError(ctx, err)
		return
	}

	conn, err := watchUpgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	// The request context dies with the handler; the pump lives as long as
	// the socket does.
	go h.watchPump(context.Background(), conn, kind, roomID)
}

func (h *Handler) watchPump(ctx context.Context, conn *websocket.Conn, kind GameKind, roomID string) {
	defer conn.Close()

	closed := make(chan struct{})
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(watchPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(watchPingInterval)
	defer ping.Stop()

	var lastVersion int64
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(watchWriteDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			room, err := h.lifecycle.Get(ctx, kind, roomID)
			if errors.Is(err, ErrRoomNotFound) {
				conn.SetWriteDeadline(time.Now().Add(watchWriteDeadline))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room-gone"))
				return
			}
			if err != nil {
				continue // transient storage trouble, keep watching
			}
			if room.Version == lastVersion {
				continue
			}
			lastVersion = room.Version
			conn.SetWriteDeadline(time.Now().Add(watchWriteDeadline))
			if err := conn.WriteJSON(h.coordinator.View(room)); err != nil {
				return
			}
		}
	}
}
