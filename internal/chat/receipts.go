package chat

import (
	"fmt"
	"time"
)

// MarkAsRead transitions every message in chatId that was sent by someone
// else and not yet read by userId to status read, appending userId to each
// message's readBy set. The transition is monotonic and idempotent: a second
// call with nothing newly unread marks zero messages, emits nothing, and
// never duplicates a readBy entry.
//
// One batched message:read event goes to the chat room; each distinct
// original sender additionally gets a direct copy on their personal room so
// senders who never joined the chat room still learn their messages were
// read.
func (s *Service) MarkAsRead(userId int, chatId string) (int, error) {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return 0, err
	}

	unread, err := s.repo.ListUnreadMessages(c.Id, userId)
	if err != nil {
		return 0, fmt.Errorf("list unread: %w", err)
	}

	if len(unread) == 0 {
		return 0, nil
	}

	readAt := time.Now().UTC()
	messageIds := make([]int, len(unread))
	senders := make(map[int]struct{})
	for i, m := range unread {
		messageIds[i] = m.Id
		senders[m.SenderId] = struct{}{}
	}

	if err := s.repo.MarkMessagesRead(messageIds, userId, readAt); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	payload := MessageReadPayload{
		ChatId:     c.ExternalId,
		MessageIds: messageIds,
		ReadBy:     userId,
		ReadAt:     readAt,
	}

	s.bc.Broadcast([]string{ChatRoom(c.ExternalId)}, EventMessageRead, payload)
	for senderId := range senders {
		s.bc.Broadcast([]string{UserRoom(senderId)}, EventMessageRead, payload)
	}

	return len(messageIds), nil
}
