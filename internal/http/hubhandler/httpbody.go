package hubhandler

import "encoding/json"

type BroadcastBody struct {
	RoomID               string          `json:"roomId"  binding:"required" example:"r1"`
	Message              json.RawMessage `json:"message" binding:"required"`
	ExcludeConnectionIDs []string        `json:"excludeConnectionIds"`
} // @name BroadcastRequest

type BroadcastResponse struct {
	Delivered int `json:"delivered"`
} // @name BroadcastResponse

type StateResponse struct {
	RoomID      string          `json:"roomId"`
	LastMessage json.RawMessage `json:"lastMessage"`
} // @name StateResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
