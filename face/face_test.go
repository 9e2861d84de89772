package face

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enc "github.com/zjkmxy/go-ndn/pkg/encoding"

	"github.com/go-ndn/consumer/packet"
	"github.com/go-ndn/consumer/sched"
)

type peer struct {
	conn net.Conn
	r    *bufio.Reader
}

func (p *peer) read(t *testing.T) packet.Packet {
	frame, err := ReadFrame(p.r)
	if !assert.NoError(t, err) {
		return nil
	}
	pkt, err := packet.DecodePacket(frame)
	assert.NoError(t, err)
	return pkt
}

func (p *peer) write(t *testing.T, pkt packet.Packet) {
	wire, err := pkt.Encode()
	if !assert.NoError(t, err) {
		return
	}
	_, err = p.conn.Write(wire.Join())
	assert.NoError(t, err)
}

func setup(t *testing.T) (*Face, *peer, *sched.Loop) {
	a, b := net.Pipe()
	loop := sched.NewLoop()
	f := New(a, loop, sched.NewScheduler(loop))
	t.Cleanup(func() {
		f.Close()
		b.Close()
	})
	return f, &peer{conn: b, r: bufio.NewReader(b)}, loop
}

func run(t *testing.T, loop *sched.Loop) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return loop.Run(ctx)
}

func interest(name string, lifetime time.Duration) *packet.Interest {
	i := packet.NewInterest(packet.MustParseName(name))
	i.Lifetime = lifetime
	return i
}

func TestExpressInterestData(t *testing.T) {
	f, p, loop := setup(t)

	i := interest("/a/b", time.Second)
	i.CanBePrefix = true
	var got *packet.Data
	_, err := f.ExpressInterest(i, func(_ *packet.Interest, d *packet.Data) {
		got = d
	}, nil, func(*packet.Interest) {
		t.Error("unexpected timeout")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.PendingCount())

	go func() {
		sent, ok := p.read(t).(*packet.Interest)
		if !assert.True(t, ok) {
			return
		}
		assert.NotNil(t, sent.Nonce)
		assert.True(t, sent.CanBePrefix)
		// data under another name first; it must be ignored
		p.write(t, &packet.Data{Name: packet.MustParseName("/x")})
		p.write(t, &packet.Data{Name: packet.MustParseName("/a/b/c"), Content: []byte("hi")})
	}()

	require.NoError(t, run(t, loop))
	require.NotNil(t, got)
	assert.Equal(t, "/a/b/c", got.Name.String())
	assert.Equal(t, []byte("hi"), got.Content)
	assert.Equal(t, 0, f.PendingCount())
	assert.EqualValues(t, 0, loop.Work())
}

func TestExpressInterestSharedData(t *testing.T) {
	f, p, loop := setup(t)

	exact := interest("/a/b", time.Second)
	prefix := interest("/a", time.Second)
	prefix.CanBePrefix = true
	other := interest("/a", 50*time.Millisecond)

	var satisfied, timedOut []string
	onData := func(i *packet.Interest, _ *packet.Data) { satisfied = append(satisfied, i.Name.String()) }
	onTimeout := func(i *packet.Interest) { timedOut = append(timedOut, i.Name.String()) }
	for _, i := range []*packet.Interest{exact, prefix, other} {
		_, err := f.ExpressInterest(i, onData, nil, onTimeout)
		require.NoError(t, err)
	}

	go func() {
		for n := 0; n < 3; n++ {
			p.read(t)
		}
		p.write(t, &packet.Data{Name: packet.MustParseName("/a/b")})
	}()

	require.NoError(t, run(t, loop))
	assert.ElementsMatch(t, []string{"/a/b", "/a"}, satisfied)
	// "/a" without CanBePrefix cannot be satisfied by "/a/b"
	assert.Equal(t, []string{"/a"}, timedOut)
}

func TestExpressInterestNack(t *testing.T) {
	f, p, loop := setup(t)

	var reason packet.NackReason
	_, err := f.ExpressInterest(interest("/n", time.Second), func(*packet.Interest, *packet.Data) {
		t.Error("unexpected data")
	}, func(_ *packet.Interest, n *packet.Nack) {
		reason = n.Reason
	}, nil)
	require.NoError(t, err)

	go func() {
		sent, ok := p.read(t).(*packet.Interest)
		if !assert.True(t, ok) {
			return
		}
		// wrong nonce is not ours
		wrong := sent.Clone()
		*wrong.Nonce ^= 1
		p.write(t, &packet.Nack{Reason: packet.NackReasonCongestion, Interest: wrong})
		p.write(t, &packet.Nack{Reason: packet.NackReasonNoRoute, Interest: sent})
	}()

	require.NoError(t, run(t, loop))
	assert.Equal(t, packet.NackReasonNoRoute, reason)
}

func TestExpressInterestTimeout(t *testing.T) {
	f, _, loop := setup(t)

	start := time.Now()
	var expired *packet.Interest
	_, err := f.ExpressInterest(interest("/slow", 30*time.Millisecond), nil, nil, func(i *packet.Interest) {
		expired = i
	})
	require.NoError(t, err)

	require.NoError(t, run(t, loop))
	require.NotNil(t, expired)
	assert.Equal(t, "/slow", expired.Name.String())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 0, f.PendingCount())
}

func TestRemovePendingInterest(t *testing.T) {
	f, _, loop := setup(t)

	id, err := f.ExpressInterest(interest("/r", time.Hour), nil, nil, func(*packet.Interest) {
		t.Error("removed interest timed out")
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, loop.Work())

	f.RemovePendingInterest(id)
	assert.Equal(t, 0, f.PendingCount())
	assert.EqualValues(t, 0, loop.Work())
	require.NoError(t, run(t, loop))
}

func TestInterestFilter(t *testing.T) {
	f, p, loop := setup(t)

	reply := func(prefix enc.Name, i *packet.Interest) {
		d := &packet.Data{Name: i.Name, Content: []byte(strconv.Itoa(len(prefix)))}
		assert.NoError(t, f.PutData(d))
	}
	f.SetInterestFilter(enc.Name{}, reply)
	f.SetInterestFilter(packet.MustParseName("/p"), reply)
	unset := f.SetInterestFilter(packet.MustParseName("/p/q"), reply)
	f.UnsetInterestFilter(unset)
	assert.EqualValues(t, 2, loop.Work())

	got := make(map[string]string)
	go func() {
		defer loop.Stop()
		for _, name := range []string{"/p/q/x", "/z"} {
			p.write(t, interest(name, time.Second))
			d, ok := p.read(t).(*packet.Data)
			if !assert.True(t, ok) {
				return
			}
			got[d.Name.String()] = string(d.Content)
		}
	}()

	require.NoError(t, run(t, loop))
	// the longest remaining filter answers: "/p" for /p/q/x, the root for /z
	assert.Equal(t, map[string]string{"/p/q/x": "1", "/z": "0"}, got)

	require.NoError(t, f.Close())
	assert.EqualValues(t, 0, loop.Work())
}

func TestPutNack(t *testing.T) {
	f, p, loop := setup(t)

	f.SetInterestFilter(enc.Name{}, func(_ enc.Name, i *packet.Interest) {
		assert.NoError(t, f.PutNack(&packet.Nack{Reason: packet.NackReasonDuplicate, Interest: i}))
	})
	go func() {
		defer loop.Stop()
		p.write(t, interest("/dup", time.Second))
		n, ok := p.read(t).(*packet.Nack)
		if assert.True(t, ok) {
			assert.Equal(t, packet.NackReasonDuplicate, n.Reason)
		}
	}()
	require.NoError(t, run(t, loop))
}

func TestRemoteClose(t *testing.T) {
	f, p, loop := setup(t)

	_, err := f.ExpressInterest(interest("/gone", time.Hour), nil, nil, nil)
	require.NoError(t, err)
	go func() {
		p.read(t)
		p.conn.Close()
	}()

	err = run(t, loop)
	assert.ErrorIs(t, err, ErrRemoteClosed)
	assert.ErrorIs(t, f.Err(), ErrRemoteClosed)

	_, err = f.ExpressInterest(interest("/again", time.Second), nil, nil, nil)
	assert.ErrorIs(t, err, ErrRemoteClosed)
}

func TestCloseDropsPending(t *testing.T) {
	f, _, loop := setup(t)

	for _, name := range []string{"/a", "/b"} {
		_, err := f.ExpressInterest(interest(name, time.Hour), nil, nil, func(*packet.Interest) {
			t.Error("callback after close")
		})
		require.NoError(t, err)
	}
	f.SetInterestFilter(enc.Name{}, func(enc.Name, *packet.Interest) {})

	require.NoError(t, f.Close())
	assert.Equal(t, 0, f.PendingCount())
	assert.EqualValues(t, 0, loop.Work())

	_, err := f.ExpressInterest(interest("/c", time.Second), nil, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.PutData(&packet.Data{Name: packet.MustParseName("/c")}), ErrClosed)
}

func TestStalledPeerFailsFace(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	loop := sched.NewLoop()
	failed := make(chan error, 1)
	f := New(a, loop, sched.NewScheduler(loop), WithQueueSize(1), WithErrorHandler(func(err error) {
		failed <- err
	}))
	defer f.Close()

	// b never reads: the writer blocks on the first packet and the queue
	// holds at most one more
	var err error
	for n := 0; n < 3 && err == nil; n++ {
		err = f.PutData(&packet.Data{Name: packet.MustParseName("/stalled")})
	}
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.ErrorIs(t, f.Err(), ErrQueueFull)
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("error handler not called")
	}

	_, err = f.ExpressInterest(interest("/after", time.Second), nil, nil, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 0, f.PendingCount())
}
