package chat

import "errors"

// Domain rejections. Each maps to a structured REST/socket error with no
// side effects on the store.
var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotParticipant   = errors.New("not a participant of this chat")
	ErrNotAdmin         = errors.New("not the chat admin")
	ErrNotSender        = errors.New("not the message sender")
	ErrPinLimitExceeded = errors.New("pinned chat limit exceeded")
	ErrValidation       = errors.New("validation failed")
)
