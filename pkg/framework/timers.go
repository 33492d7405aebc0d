package framework

import (
	"time"

	"github.com/golang/glog"
)

type timerSlot struct {
	used  bool
	gen   uint32
	timer Timer
	msg   Message
}

func (s *timerSlot) free() {
	s.used, s.timer, s.msg = false, nil, Message{}
}

// timerTrigger points a queued trigger at the slot generation it was
// posted for. A slot reused since then doesn't match.
type timerTrigger struct {
	slot int
	gen  uint32
}

// HasTimer reports whether a delayed message of (tag, id) is pending.
func (k *Kernel) HasTimer(tag Tag, id uint16) bool {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.findSlot(tag, id) >= 0
}

func (k *Kernel) findSlot(tag Tag, id uint16) int {
	for n := range k.timers {
		if s := &k.timers[n]; s.used && s.msg.Tag == tag && s.msg.ID == id {
			return n
		}
	}
	return -1
}

func (k *Kernel) schedule(tag Tag, id uint16, payload []byte, delay time.Duration) error {
	msg, err := newMessage(tag, id, payload)
	if err != nil {
		return err
	}
	k.lock.Lock()
	defer k.lock.Unlock()
	if k.findSlot(tag, id) >= 0 {
		glog.Warningf("kernel: delayed %s/%d already pending", tag, id)
		return ErrDuplicateTimer
	}
	for n := range k.timers {
		s := &k.timers[n]
		if s.used {
			continue
		}
		s.used, s.msg = true, msg
		s.gen++
		slot, gen := n, s.gen
		s.timer = k.clock.AfterFunc(delay, func() { k.expire(slot, gen) })
		glog.V(2).Infof("kernel: delayed %s/%d in %v (slot %d)", tag, id, delay, slot)
		return nil
	}
	glog.Warningf("kernel: no timer slot for %s/%d", tag, id)
	return ErrNoTimerSlot
}

// expire runs on the clock's goroutine. It only posts a trigger, or
// releases its own slot when the queue is full.
func (k *Kernel) expire(slot int, gen uint32) {
	k.lock.Lock()
	s := &k.timers[slot]
	if !s.used || s.gen != gen {
		k.lock.Unlock()
		return
	}
	err := k.enqueueLocked(Message{Tag: TagMain, trigger: &timerTrigger{slot: slot, gen: gen}})
	if err != nil {
		glog.Errorf("kernel: delayed %s/%d lost: %v", s.msg.Tag, s.msg.ID, err)
		s.free()
	}
	k.lock.Unlock()
	if err == nil {
		k.TriggerNext()
	}
}

func (k *Kernel) fireSlot(dc *dispatchCtx, t timerTrigger) {
	if t.slot >= len(k.timers) {
		return
	}
	k.lock.Lock()
	s := &k.timers[t.slot]
	if !s.used || s.gen != t.gen {
		k.lock.Unlock()
		return
	}
	msg := s.msg
	s.free()
	k.lock.Unlock()
	k.deliver(dc, msg)
}

func (k *Kernel) cancel(tag Tag, id uint16) {
	k.lock.Lock()
	defer k.lock.Unlock()
	slot := k.findSlot(tag, id)
	if slot >= 0 {
		s := &k.timers[slot]
		s.timer.Stop()
		s.free()
	}
	removed := k.messages.removeIf(func(msg *Message) bool {
		if msg.fn != nil {
			return false
		}
		if msg.trigger != nil {
			return msg.trigger.slot == slot
		}
		return msg.Tag == tag && msg.ID == id
	})
	if slot >= 0 || removed > 0 {
		glog.V(2).Infof("kernel: cancel %s/%d (slot %d, %d queued)", tag, id, slot, removed)
	}
}

func (k *Kernel) stopTimers() {
	k.lock.Lock()
	defer k.lock.Unlock()
	for n := range k.timers {
		if s := &k.timers[n]; s.used {
			s.timer.Stop()
			s.free()
		}
	}
}
