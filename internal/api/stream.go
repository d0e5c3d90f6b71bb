package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// any origin may subscribe to status
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamStatus upgrades the request to a websocket and pushes a status
// snapshot immediately and then every push interval until the client goes
// away. Client messages are read and discarded.
func (a *API) StreamStatus(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go readPump(conn, gone)

	push := time.NewTicker(a.opts.StatusPushInterval)
	ping := time.NewTicker(wsPingPeriod)
	defer push.Stop()
	defer ping.Stop()

	log.Debug().Str("client_ip", c.ClientIP()).Msg("status stream opened")
	if err := a.pushStatus(conn); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			log.Debug().Str("client_ip", c.ClientIP()).Msg("status stream closed")
			return
		case <-push.C:
			if err := a.pushStatus(conn); err != nil {
				log.Debug().Err(err).Msg("status push failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *API) pushStatus(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(a.statusResponse())
}

func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("status stream read error")
			}
			return
		}
	}
}
