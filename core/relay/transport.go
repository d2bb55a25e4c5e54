package relay

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/relay/core/logger"
)

const (
	DefaultWriteWait      = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultMaxMessageSize = 1 << 20
)

// readPump feeds decoded frames into the connection's dispatch queue until
// the socket fails or the connection is torn down. It disconnects c on exit.
func (s *Server) readPump(ns *Namespace, ws *websocket.Conn, c *Connection) {
	defer func() {
		ns.Disconnect(c)
		_ = ws.Close()
	}()

	ws.SetReadLimit(s.maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("read error",
					logger.ConnectionID(c.id), logger.Namespace(ns.label), logger.Error(err))
			}
			return
		}

		ev, err := ParseEvent(data)
		if err != nil {
			s.logger.Debug("frame dropped",
				logger.ConnectionID(c.id), logger.Namespace(ns.label), logger.Error(err))
			continue
		}

		if err := c.Enqueue(ev); errors.Is(err, ErrConnectionClosed) {
			return
		}
	}
}

// writePump drains the outbound queue onto the socket and keeps the peer
// alive with pings. It sends a close frame once c is disconnected.
func (s *Server) writePump(ws *websocket.Conn, c *Connection) {
	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeWait))
			return
		case frame := <-c.outbound:
			_ = ws.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
