package realtime

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 15 * time.Second
	sendBuffer = 64
)

// Client is one websocket attached to one match.
type Client struct {
	id      string // transport identity, distinct from user id
	userID  string
	matchID string
	conn    *websocket.Conn
	send    chan []byte
}

func newClient(conn *websocket.Conn, matchID, userID string) *Client {
	return &Client{
		id:      randID(),
		userID:  userID,
		matchID: matchID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
}

func randID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePump owns all writes on the connection. Exits when send is closed or a
// write fails; either way the read loop notices via the closed socket.
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
