package ws

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"roomhub/internal/hub"
)

const (
	readLimit       = 4096
	dispatchTimeout = 10 * time.Second
)

type WsServer struct {
	hub *hub.Hub
}

func NewWsServer(h *hub.Hub) *WsServer {
	return &WsServer{hub: h}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	// Optional routing metadata; admission may also carry the room id.
	roomID := ginCtx.Query("room_id")

	rawConn, err := websocket.Accept(
		ginCtx.Writer, ginCtx.Request,
		&websocket.AcceptOptions{InsecureSkipVerify: true}, // dev‑only
	)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(readLimit)

	conn := &clientConn{raw: rawConn}
	connID := s.hub.Connect(conn, roomID)

	go s.reader(connID, conn)
}

// reader pumps inbound frames into the hub until the transport drops. There
// is no server-side ticker: liveness is client-driven and bounded by the
// hub's idle deadline.
func (s *WsServer) reader(connID string, conn *clientConn) {
	defer s.hub.Disconnect(connID)

	for {
		_, data, err := conn.raw.Read(context.Background())
		if err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		s.hub.HandleMessage(ctx, connID, data)
		cancel()
	}
}
