package broadcast

import (
	"net/http"
	"time"

	"github.com/google/uuid"
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

// WSClient is a websocket observer. Its write pump drains the outbox; its
// read pump only watches for the connection going away.
type WSClient struct {
	*Outbox
	id   string
	conn *websocket.Conn
	hub  *Hub
}

// ServeWS upgrades the request and attaches the connection to hub
func ServeWS(hub *Hub, bufferSize int, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := &WSClient{
		Outbox: NewOutbox(bufferSize),
		id:     uuid.NewString(),
		conn:   conn,
		hub:    hub,
	}

	log.WithFields(log.Fields{
		"client_id": client.id,
		"remote":    r.RemoteAddr,
	}).Info("Websocket client connected")

	go client.writePump()
	hub.Attach(client)
	go client.readPump()
}

func (c *WSClient) ID() string {
	return c.id
}

func (c *WSClient) readPump() {
	defer c.hub.Detach(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithFields(log.Fields{
					"client_id": c.id,
					"error":     err,
				}).Warn("Websocket read error")
			}
			return
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		log.WithField("client_id", c.id).Info("Websocket client disconnected")
	}()

	for {
		select {
		case msg, ok := <-c.Messages():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.WithFields(log.Fields{
					"client_id": c.id,
					"error":     err,
				}).Warn("Websocket write failed")
				c.hub.Detach(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Detach(c)
				return
			}
		}
	}
}
