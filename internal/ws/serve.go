package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades the request and streams the user's events until the peer disconnects.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint64) {
	conn, errUpgrade := upgrader.Upgrade(w, r, nil)
	if errUpgrade != nil {
		log.WithError(errUpgrade).Debug("ws: upgrade failed")
		return
	}
	client := NewClient(userID, 64)
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(client, conn)
	}()
	readPump(conn)
	client.Close()
	<-done
	_ = conn.Close()
}

func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if errWrite := conn.WriteMessage(websocket.TextMessage, msg); errWrite != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errPing := conn.WriteMessage(websocket.PingMessage, nil); errPing != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, errRead := conn.ReadMessage(); errRead != nil {
			return
		}
	}
}
