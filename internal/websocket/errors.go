package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrSendBufferFull   = errors.New("send buffer is full")
	ErrInvalidServerURL = errors.New("invalid server URL")
	ErrRoomRequired     = errors.New("room id required for join mode")
)
