package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Defaults of a Kernel.
const (
	DefaultQueueSize  = 64
	DefaultTimerSlots = 16
	// MaxPayloadLen bounds the payload of a single message.
	MaxPayloadLen = 1024
)

// Kernel is the single-threaded message dispatcher. Every subsystem
// registers one Handler under its Tag, and all handlers run one at a
// time on the goroutine executing Run or HandlePending.
type Kernel struct {
	queueSize int
	clock     Clock

	handlers     [TagMax]Handler
	handlersLock sync.RWMutex

	lock     sync.Mutex
	messages messageList
	timers   []timerSlot

	wakeUpCh chan struct{}
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithQueueSize sets the capacity of the message queue.
func WithQueueSize(n int) Option {
	return func(k *Kernel) { k.queueSize = n }
}

// WithTimerSlots sets the number of delayed-message slots.
func WithTimerSlots(n int) Option {
	return func(k *Kernel) { k.timers = make([]timerSlot, n) }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(k *Kernel) { k.clock = c }
}

type messageList struct {
	head *messageItem
	tail *messageItem
	size int
}

type messageItem struct {
	msg  Message
	next *messageItem
}

func (l *messageList) append(item *messageItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
	l.size++
}

func (l *messageList) popFront() *messageItem {
	item := l.head
	if item == nil {
		return nil
	}
	l.head = item.next
	if l.head == nil {
		l.tail = nil
	}
	item.next = nil
	l.size--
	return item
}

// removeIf unlinks every item matching pred, keeping the order of the rest.
func (l *messageList) removeIf(pred func(*Message) bool) (removed int) {
	var prev *messageItem
	for item := l.head; item != nil; {
		next := item.next
		if !pred(&item.msg) {
			prev, item = item, next
			continue
		}
		if prev == nil {
			l.head = next
		} else {
			prev.next = next
		}
		if l.tail == item {
			l.tail = prev
		}
		item.next = nil
		l.size--
		removed++
		item = next
	}
	return
}

// NewKernel creates a Kernel.
func NewKernel(opts ...Option) *Kernel {
	k := &Kernel{
		queueSize: DefaultQueueSize,
		clock:     WallClock,
		wakeUpCh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.timers == nil {
		k.timers = make([]timerSlot, DefaultTimerSlots)
	}
	return k
}

// Clock returns the clock used by the kernel.
func (k *Kernel) Clock() Clock {
	return k.clock
}

// Register installs the handler for a tag. The last registration wins.
// TagMain is owned by the kernel itself.
func (k *Kernel) Register(tag Tag, h Handler) error {
	if !tag.Valid() || tag == TagMain {
		return ErrInvalidTag
	}
	k.handlersLock.Lock()
	k.handlers[tag] = h
	k.handlersLock.Unlock()
	return nil
}

// Add registers KernelAdders.
func (k *Kernel) Add(adders ...KernelAdder) error {
	for _, adder := range adders {
		if err := adder.AddToKernel(k); err != nil {
			return err
		}
	}
	return nil
}

// Send implements Sender.
func (k *Kernel) Send(tag Tag, id uint16, payload []byte) error {
	msg, err := newMessage(tag, id, payload)
	if err != nil {
		return err
	}
	return k.enqueue(msg)
}

// Post runs fn once on the dispatching goroutine, in queue order.
func (k *Kernel) Post(fn func(DispatchContext)) error {
	return k.enqueue(Message{Tag: TagMain, fn: fn})
}

// TriggerNext wakes up the dispatcher.
func (k *Kernel) TriggerNext() {
	select {
	case k.wakeUpCh <- struct{}{}:
	default:
	}
}

// Queued returns the number of messages waiting for dispatch.
func (k *Kernel) Queued() int {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.messages.size
}

// Run implements Runnable.
func (k *Kernel) Run(ctx context.Context) error {
	defer k.stopTimers()
	for {
		select {
		case <-ctx.Done():
			k.HandlePending(ctx)
			return ctx.Err()
		case <-k.wakeUpCh:
			k.HandlePending(ctx)
		}
	}
}

// HandlePending dispatches queued messages until the queue is empty
// and returns how many were dispatched. It never blocks for new ones.
func (k *Kernel) HandlePending(ctx context.Context) (count int) {
	for {
		msg, ok := k.pop()
		if !ok {
			return
		}
		k.dispatch(ctx, msg)
		count++
	}
}

// newMessage validates a message from outside the kernel. TagMain only
// carries the kernel's own hooks and timer triggers.
func newMessage(tag Tag, id uint16, payload []byte) (Message, error) {
	if !tag.Valid() || tag == TagMain {
		return Message{}, ErrInvalidTag
	}
	if len(payload) > MaxPayloadLen {
		return Message{}, ErrPayloadTooLarge
	}
	msg := Message{Tag: tag, ID: id}
	if len(payload) > 0 {
		msg.Payload = append([]byte(nil), payload...)
	}
	return msg, nil
}

func (k *Kernel) enqueue(msg Message) error {
	k.lock.Lock()
	err := k.enqueueLocked(msg)
	k.lock.Unlock()
	if err != nil {
		glog.Warningf("kernel: send %s/%d failed: %v", msg.Tag, msg.ID, err)
		return err
	}
	k.TriggerNext()
	return nil
}

func (k *Kernel) enqueueLocked(msg Message) error {
	if k.messages.size >= k.queueSize {
		return ErrQueueFull
	}
	k.messages.append(&messageItem{msg: msg})
	return nil
}

func (k *Kernel) pop() (Message, bool) {
	k.lock.Lock()
	item := k.messages.popFront()
	k.lock.Unlock()
	if item == nil {
		return Message{}, false
	}
	return item.msg, true
}

func (k *Kernel) handler(tag Tag) Handler {
	k.handlersLock.RLock()
	defer k.handlersLock.RUnlock()
	return k.handlers[tag]
}

func (k *Kernel) dispatch(ctx context.Context, msg Message) {
	dc := &dispatchCtx{kernel: k, ctx: ctx, time: k.clock.Now()}
	switch {
	case msg.fn != nil:
		msg.fn(dc)
	case msg.trigger != nil:
		k.fireSlot(dc, *msg.trigger)
	default:
		k.deliver(dc, msg)
	}
}

func (k *Kernel) deliver(dc *dispatchCtx, msg Message) {
	h := k.handler(msg.Tag)
	if h == nil {
		glog.Warningf("kernel: no handler for %s, message %d dropped", msg.Tag, msg.ID)
		return
	}
	glog.V(2).Infof("kernel: dispatch %s/%d (%d bytes)", msg.Tag, msg.ID, len(msg.Payload))
	h.HandleMessage(dc, msg.ID, msg.Payload)
}

type dispatchCtx struct {
	kernel *Kernel
	ctx    context.Context
	time   time.Time
}

func (c *dispatchCtx) Context() context.Context {
	return c.ctx
}

func (c *dispatchCtx) Time() time.Time {
	return c.time
}

func (c *dispatchCtx) Send(tag Tag, id uint16, payload []byte) error {
	return c.kernel.Send(tag, id, payload)
}

func (c *dispatchCtx) SendDelay(tag Tag, id uint16, payload []byte, delay time.Duration) error {
	if delay <= 0 {
		return c.kernel.Send(tag, id, payload)
	}
	return c.kernel.schedule(tag, id, payload, delay)
}

func (c *dispatchCtx) Cancel(tag Tag, id uint16) {
	c.kernel.cancel(tag, id)
}
