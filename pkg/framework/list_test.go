package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func listIDs(l *messageList) (ids []uint16) {
	for item := l.head; item != nil; item = item.next {
		ids = append(ids, item.msg.ID)
	}
	return
}

func TestMessageListRemoveIf(t *testing.T) {
	tests := []struct {
		name   string
		ids    []uint16
		remove uint16
		want   []uint16
	}{
		{"none", []uint16{1, 2}, 3, []uint16{1, 2}},
		{"head", []uint16{1, 2, 3}, 1, []uint16{2, 3}},
		{"tail", []uint16{1, 2, 3}, 3, []uint16{1, 2}},
		{"interleaved", []uint16{1, 2, 1, 3}, 1, []uint16{2, 3}},
		{"all", []uint16{4, 4}, 4, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var l messageList
			for _, id := range test.ids {
				l.append(&messageItem{msg: Message{ID: id}})
			}
			l.removeIf(func(msg *Message) bool { return msg.ID == test.remove })
			assert.Equal(t, test.want, listIDs(&l))
			assert.Equal(t, len(test.want), l.size)
			// tail must stay usable for appends.
			l.append(&messageItem{msg: Message{ID: 9}})
			assert.Equal(t, append(test.want, 9), listIDs(&l))
		})
	}
}

func TestMessageListPopFront(t *testing.T) {
	var l messageList
	assert.Nil(t, l.popFront())
	l.append(&messageItem{msg: Message{ID: 1}})
	assert.Equal(t, uint16(1), l.popFront().msg.ID)
	assert.Nil(t, l.tail)
	l.append(&messageItem{msg: Message{ID: 2}})
	assert.Equal(t, []uint16{2}, listIDs(&l))
}
