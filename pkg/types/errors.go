package types

import "errors"

var (
	ErrMalformedMessage = errors.New("malformed wire message")
	ErrInvalidRoomCode  = errors.New("room code must be 6 uppercase alphanumeric characters")
	ErrInvalidColor     = errors.New("color must be a #rrggbb hex value")
	ErrInvalidTool      = errors.New("unknown tool")
)
