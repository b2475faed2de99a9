package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"roomhub/internal/protocol"
)

const writeWait = 10 * time.Second

// clientConn serialises writes to one websocket connection and maps hub
// close reasons onto wire status codes.
type clientConn struct {
	raw *websocket.Conn
	mu  sync.Mutex
}

func (c *clientConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return wsjson.Write(ctx, c.raw, v)
}

func (c *clientConn) Close(reason protocol.CloseReason, message string) {
	code := websocket.StatusNormalClosure
	if reason == protocol.CloseAdmissionFailed {
		code = websocket.StatusPolicyViolation
	}
	_ = c.raw.Close(code, message)
}
