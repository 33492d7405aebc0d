package framework_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/framework/fxtest"
)

type received struct {
	id      uint16
	payload string
	at      time.Duration
}

type recorder struct {
	msgs []received
}

func (r *recorder) HandleMessage(dc fx.DispatchContext, id uint16, payload []byte) {
	r.msgs = append(r.msgs, received{id: id, payload: string(payload), at: dc.Time().Sub(fxtest.Epoch)})
}

func (r *recorder) ids() []uint16 {
	ids := make([]uint16, len(r.msgs))
	for n, m := range r.msgs {
		ids[n] = m.id
	}
	return ids
}

var ignoreGlog = goleak.IgnoreAnyFunction("github.com/golang/glog.(*loggingT).flushDaemon")

func newHarness(t *testing.T, opts ...fx.Option) (*fxtest.Harness, *recorder) {
	h := fxtest.NewHarness(opts...)
	rec := &recorder{}
	require.NoError(t, h.Kernel.Register(fx.TagConn, rec))
	return h, rec
}

func TestRegister(t *testing.T) {
	k := fx.NewKernel()
	assert.Equal(t, fx.ErrInvalidTag, k.Register(fx.TagMax, &recorder{}))
	assert.Equal(t, fx.ErrInvalidTag, k.Register(fx.TagMain, &recorder{}))

	first, second := &recorder{}, &recorder{}
	require.NoError(t, k.Register(fx.TagWWS, first))
	require.NoError(t, k.Register(fx.TagWWS, second))
	require.NoError(t, k.Send(fx.TagWWS, 1, nil))
	k.HandlePending(context.Background())
	assert.Empty(t, first.msgs)
	assert.Equal(t, []uint16{1}, second.ids())
}

func TestSendOrderAndDrop(t *testing.T) {
	h, rec := newHarness(t)
	require.NoError(t, h.Kernel.Send(fx.TagConn, 1, []byte("a")))
	require.NoError(t, h.Kernel.Send(fx.TagLED, 9, nil))
	require.NoError(t, h.Kernel.Send(fx.TagConn, 2, []byte("b")))
	assert.Equal(t, 3, h.Drain())
	require.Len(t, rec.msgs, 2)
	assert.Equal(t, "a", rec.msgs[0].payload)
	assert.Equal(t, "b", rec.msgs[1].payload)
}

func TestSendErrors(t *testing.T) {
	k := fx.NewKernel(fx.WithQueueSize(2))
	assert.Equal(t, fx.ErrInvalidTag, k.Send(fx.TagMax, 1, nil))
	assert.Equal(t, fx.ErrInvalidTag, k.Send(fx.TagMain, 1, nil))
	assert.Equal(t, fx.ErrPayloadTooLarge, k.Send(fx.TagConn, 1, make([]byte, fx.MaxPayloadLen+1)))
	require.NoError(t, k.Send(fx.TagConn, 1, nil))
	require.NoError(t, k.Send(fx.TagConn, 2, nil))
	assert.Equal(t, fx.ErrQueueFull, k.Send(fx.TagConn, 3, nil))
	assert.Equal(t, 2, k.Queued())
}

func TestSendCopiesPayload(t *testing.T) {
	h, rec := newHarness(t)
	buf := []byte("xy")
	require.NoError(t, h.Kernel.Send(fx.TagConn, 1, buf))
	buf[0] = 'z'
	h.Drain()
	assert.Equal(t, "xy", rec.msgs[0].payload)
}

func TestSendDelay(t *testing.T) {
	h, rec := newHarness(t)
	h.Do(func(dc fx.DispatchContext) {
		require.NoError(t, dc.SendDelay(fx.TagConn, 1, []byte("late"), time.Second))
		require.NoError(t, dc.SendDelay(fx.TagConn, 2, nil, 0))
	})
	assert.Equal(t, []uint16{2}, rec.ids())
	assert.True(t, h.Kernel.HasTimer(fx.TagConn, 1))

	h.Advance(999 * time.Millisecond)
	assert.Len(t, rec.msgs, 1)
	h.Advance(time.Millisecond)
	require.Len(t, rec.msgs, 2)
	assert.Equal(t, received{id: 1, payload: "late", at: time.Second}, rec.msgs[1])
	assert.False(t, h.Kernel.HasTimer(fx.TagConn, 1))
}

func TestTimerNotFiredByMainMessage(t *testing.T) {
	h, rec := newHarness(t)
	h.Do(func(dc fx.DispatchContext) {
		require.NoError(t, dc.SendDelay(fx.TagConn, 1, nil, time.Second))
		// slot 0, first generation
		assert.Equal(t, fx.ErrInvalidTag, dc.Send(fx.TagMain, 1, []byte{0, 0, 1, 0, 0, 0}))
	})
	assert.Equal(t, fx.ErrInvalidTag, h.Kernel.Send(fx.TagMain, 1, []byte{0, 0, 1, 0, 0, 0}))
	h.Drain()
	assert.Empty(t, rec.msgs)
	assert.True(t, h.Kernel.HasTimer(fx.TagConn, 1))

	h.Advance(time.Second)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, time.Second, rec.msgs[0].at)
}

func TestSendDelayDuplicate(t *testing.T) {
	h, rec := newHarness(t)
	for _, id := range []uint16{1, 2, 3} {
		h.Do(func(dc fx.DispatchContext) {
			require.NoError(t, dc.SendDelay(fx.TagConn, id, []byte("first"), time.Second))
			assert.Equal(t, fx.ErrDuplicateTimer, dc.SendDelay(fx.TagConn, id, []byte("second"), 10*time.Millisecond))
		})
	}
	h.Advance(10 * time.Millisecond)
	assert.Empty(t, rec.msgs)
	h.Advance(time.Second)
	require.Len(t, rec.msgs, 3)
	for _, m := range rec.msgs {
		assert.Equal(t, "first", m.payload)
		assert.Equal(t, time.Second, m.at)
	}
}

func TestSendDelayNoSlot(t *testing.T) {
	h, _ := newHarness(t, fx.WithTimerSlots(2))
	h.Do(func(dc fx.DispatchContext) {
		require.NoError(t, dc.SendDelay(fx.TagConn, 1, nil, time.Second))
		require.NoError(t, dc.SendDelay(fx.TagConn, 2, nil, time.Second))
		assert.Equal(t, fx.ErrNoTimerSlot, dc.SendDelay(fx.TagConn, 3, nil, time.Second))
		dc.Cancel(fx.TagConn, 1)
		assert.NoError(t, dc.SendDelay(fx.TagConn, 3, nil, time.Second))
	})
}

func TestCancelQueued(t *testing.T) {
	h, rec := newHarness(t)
	const a, b, c = 1, 2, 3
	for _, id := range []uint16{a, b, a, c} {
		require.NoError(t, h.Kernel.Send(fx.TagConn, id, nil))
	}
	h.Do(func(dc fx.DispatchContext) {
		dc.Cancel(fx.TagConn, a)
	})
	assert.Equal(t, []uint16{b, c}, rec.ids())
}

func TestCancelFromHandler(t *testing.T) {
	h := fxtest.NewHarness()
	var got []uint16
	require.NoError(t, h.Kernel.Register(fx.TagWWS, fx.HandlerFunc(func(dc fx.DispatchContext, id uint16, _ []byte) {
		got = append(got, id)
		if id == 0 {
			dc.Cancel(fx.TagWWS, 7)
		}
	})))
	for _, id := range []uint16{0, 7, 1, 7, 2} {
		require.NoError(t, h.Kernel.Send(fx.TagWWS, id, nil))
	}
	h.Drain()
	assert.Equal(t, []uint16{0, 1, 2}, got)
}

func TestCancelTimer(t *testing.T) {
	h, rec := newHarness(t)
	h.Do(func(dc fx.DispatchContext) {
		require.NoError(t, dc.SendDelay(fx.TagConn, 1, nil, time.Second))
		require.NoError(t, dc.SendDelay(fx.TagConn, 2, nil, time.Second))
	})
	h.Do(func(dc fx.DispatchContext) { dc.Cancel(fx.TagConn, 1) })
	assert.False(t, h.Kernel.HasTimer(fx.TagConn, 1))
	h.Advance(2 * time.Second)
	assert.Equal(t, []uint16{2}, rec.ids())
}

func TestCancelFiredNotDispatched(t *testing.T) {
	h, rec := newHarness(t)
	require.NoError(t, h.Kernel.Register(fx.TagWWS, fx.HandlerFunc(func(dc fx.DispatchContext, _ uint16, _ []byte) {
		dc.Cancel(fx.TagConn, 1)
	})))
	h.Do(func(dc fx.DispatchContext) {
		require.NoError(t, dc.SendDelay(fx.TagConn, 1, nil, time.Second))
	})
	require.NoError(t, h.Kernel.Send(fx.TagWWS, 1, nil))
	// the trigger is queued behind the canceller.
	h.Clock.Advance(time.Second)
	assert.Equal(t, 2, h.Kernel.Queued())
	h.Drain()
	assert.Empty(t, rec.msgs)
	assert.False(t, h.Kernel.HasTimer(fx.TagConn, 1))
}

func TestTimerQueueFullReleasesSlot(t *testing.T) {
	h, rec := newHarness(t, fx.WithQueueSize(1), fx.WithTimerSlots(1))
	h.Do(func(dc fx.DispatchContext) {
		require.NoError(t, dc.SendDelay(fx.TagConn, 1, nil, time.Second))
	})
	require.NoError(t, h.Kernel.Send(fx.TagConn, 2, nil))
	h.Clock.Advance(time.Second)
	assert.False(t, h.Kernel.HasTimer(fx.TagConn, 1))
	h.Drain()
	assert.Equal(t, []uint16{2}, rec.ids())
	h.Do(func(dc fx.DispatchContext) {
		assert.NoError(t, dc.SendDelay(fx.TagConn, 1, nil, time.Second))
	})
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)

	k := fx.NewKernel()
	var lock sync.Mutex
	var got []uint16
	done := make(chan struct{})
	require.NoError(t, k.Register(fx.TagBT, fx.HandlerFunc(func(dc fx.DispatchContext, id uint16, _ []byte) {
		lock.Lock()
		got = append(got, id)
		lock.Unlock()
		switch id {
		case 1:
			assert.NoError(t, dc.SendDelay(fx.TagBT, 2, nil, 10*time.Millisecond))
		case 2:
			close(done)
		}
	})))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- k.Run(ctx) }()
	require.NoError(t, k.Send(fx.TagBT, 1, nil))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delayed message not dispatched")
	}
	cancel()
	assert.Equal(t, context.Canceled, <-errCh)
	lock.Lock()
	assert.Equal(t, []uint16{1, 2}, got)
	lock.Unlock()
}

func TestRunStopsTimers(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreGlog)

	k := fx.NewKernel()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- k.Run(ctx) }()
	scheduled := make(chan struct{})
	require.NoError(t, k.Post(func(dc fx.DispatchContext) {
		assert.NoError(t, dc.SendDelay(fx.TagBT, 1, nil, time.Hour))
		close(scheduled)
	}))
	<-scheduled
	cancel()
	<-errCh
	assert.False(t, k.HasTimer(fx.TagBT, 1))
}

func TestTagNames(t *testing.T) {
	for tag := fx.TagBT; tag < fx.TagMax; tag++ {
		parsed, ok := fx.ParseTag(tag.String())
		require.True(t, ok, tag.String())
		assert.Equal(t, tag, parsed)
	}
	_, ok := fx.ParseTag("nope")
	assert.False(t, ok)
	assert.Equal(t, "tag(200)", fx.Tag(200).String())
}
