package channel

import (
	"github.com/samber/lo"

	"github.com/gneuro/tgrelay/pkg/message"
)

// AllowList controls which users and chats may talk to the bot.
// A nil AllowList admits everyone.
type AllowList struct {
	users map[int64]struct{}
	chats map[int64]struct{}
}

// NewAllowList builds an AllowList. It returns nil, an open list, when both
// users and chats are empty.
func NewAllowList(users, chats []int64) *AllowList {
	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	return &AllowList{
		users: toSet(users),
		chats: toSet(chats),
	}
}

func toSet(ids []int64) map[int64]struct{} {
	return lo.Associate(ids, func(id int64) (int64, struct{}) {
		return id, struct{}{}
	})
}

// IsOpen reports whether the list admits everyone.
func (a *AllowList) IsOpen() bool {
	return a == nil
}

// IsAllowed reports whether the message sender or chat is permitted.
func (a *AllowList) IsAllowed(msg message.InboundMessage) bool {
	if a == nil {
		return true
	}
	if _, ok := a.users[msg.Sender.ID]; ok {
		return true
	}
	_, ok := a.chats[msg.Chat.ID]
	return ok
}
