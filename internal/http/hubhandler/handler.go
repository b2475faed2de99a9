package hubhandler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roomhub/internal/hub"
)

// Handler exposes the trusted-backend boundary: the external broadcast
// trigger and a read-only view of the hub state, both behind one shared
// secret.
type Handler struct {
	hub    *hub.Hub
	secret string
}

func New(h *hub.Hub, secret string) *Handler {
	return &Handler{hub: h, secret: secret}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/broadcast", h.requireSecret, h.broadcast)
	r.GET("/state", h.requireSecret, h.state)
}

// requireSecret rejects requests whose bearer credential does not match the
// shared secret, before any state is touched.
func (h *Handler) requireSecret(ginCtx *gin.Context) {
	header := ginCtx.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		ginCtx.AbortWithStatusJSON(http.StatusUnauthorized,
			ErrorResponse{Error: "invalid credentials"})
		return
	}
	ginCtx.Next()
}

// @Summary		Inject a broadcast into the room
// @Description	Fans the message out to the room's connections and updates the last-message slot.
// @Tags			Hub
// @Param			body	body	BroadcastBody	true	"Broadcast payload"
// @Success		200	{object}	BroadcastResponse
// @Failure		400	{object}	ErrorResponse
// @Failure		401	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/broadcast [post]
func (h *Handler) broadcast(ginCtx *gin.Context) {
	var body BroadcastBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	delivered, err := h.hub.Broadcast(ginCtx.Request.Context(),
		body.RoomID, body.Message, body.ExcludeConnectionIDs)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, hub.ErrRoomMismatch) {
			status = http.StatusConflict
		}
		ginCtx.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, BroadcastResponse{Delivered: delivered})
}

// @Summary		Current hub state
// @Description	Returns the bound room id and the cached last message.
// @Tags			Hub
// @Success		200	{object}	StateResponse
// @Failure		401	{object}	ErrorResponse
// @Router			/state [get]
func (h *Handler) state(ginCtx *gin.Context) {
	roomID, last := h.hub.State()
	ginCtx.JSON(http.StatusOK, StateResponse{RoomID: roomID, LastMessage: last})
}
