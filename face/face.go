// Package face exchanges NDN packets with a forwarder, or directly with a
// peer, over a stream connection.
//
// All callbacks run on the sched.Loop the face was created with. Methods
// other than Err must be called on that loop, or while it is not running.
package face

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	enc "github.com/zjkmxy/go-ndn/pkg/encoding"

	"github.com/go-ndn/consumer/lpm"
	"github.com/go-ndn/consumer/packet"
	"github.com/go-ndn/consumer/sched"
)

var (
	ErrClosed       = errors.New("face: closed")
	ErrRemoteClosed = errors.New("face: connection closed by remote")
	// ErrQueueFull means the peer stopped reading; the face fails with it.
	ErrQueueFull = errors.New("face: outgoing queue full")
)

type (
	DataCallback    func(*packet.Interest, *packet.Data)
	NackCallback    func(*packet.Interest, *packet.Nack)
	TimeoutCallback func(*packet.Interest)
	// InterestHandler receives Interests under a registered prefix. It answers
	// through PutData or PutNack.
	InterestHandler func(prefix enc.Name, i *packet.Interest)
)

type PendingID uint64

type FilterID uint64

type pending struct {
	id        PendingID
	interest  *packet.Interest
	onData    DataCallback
	onNack    NackCallback
	onTimeout TimeoutCallback
	timer     sched.EventID
	sent      time.Time
}

type filter struct {
	id      FilterID
	prefix  enc.Name
	handler InterestHandler
}

type Face struct {
	conn  net.Conn
	loop  *sched.Loop
	sched *sched.Scheduler
	log   zerolog.Logger

	onError func(error)

	pit        lpm.Matcher[[]*pending]
	pending    map[PendingID]*pending
	filters    lpm.Matcher[*filter]
	filterByID map[FilterID]*filter
	lastID     uint64

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu  sync.Mutex
	err error
}

type Option func(*Face)

func WithLogger(log zerolog.Logger) Option {
	return func(f *Face) {
		f.log = log
	}
}

// WithErrorHandler replaces the default transport failure handling, which
// fails the loop.
func WithErrorHandler(h func(error)) Option {
	return func(f *Face) {
		f.onError = h
	}
}

// WithQueueSize sets how many encoded packets may wait for the writer.
func WithQueueSize(n int) Option {
	return func(f *Face) {
		f.out = make(chan []byte, n)
	}
}

// New starts reading from and writing to conn.
func New(conn net.Conn, loop *sched.Loop, s *sched.Scheduler, opts ...Option) *Face {
	f := &Face{
		conn:       conn,
		loop:       loop,
		sched:      s,
		log:        zerolog.Nop(),
		pending:    make(map[PendingID]*pending),
		filterByID: make(map[FilterID]*filter),
		out:        make(chan []byte, 64),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With().Str("component", "face").Str("remote", conn.RemoteAddr().String()).Logger()
	if f.onError == nil {
		f.onError = func(err error) {
			loop.Fail(fmt.Errorf("face %s: %w", conn.RemoteAddr(), err))
		}
	}

	f.wg.Add(2)
	go f.readLoop()
	go f.writeLoop()
	f.log.Debug().Msg("face created")
	return f
}

func (f *Face) readLoop() {
	defer f.wg.Done()
	r := bufio.NewReader(f.conn)
	for {
		frame, err := ReadFrame(r)
		if err != nil {
			f.fail(err)
			return
		}
		p, err := packet.DecodePacket(frame)
		if err != nil {
			f.log.Debug().Err(err).Msg("drop malformed packet")
			continue
		}
		if p == nil {
			continue
		}
		f.loop.Post(func() {
			f.dispatch(p)
		})
	}
}

func (f *Face) writeLoop() {
	defer f.wg.Done()
	for {
		select {
		case b := <-f.out:
			if _, err := f.conn.Write(b); err != nil {
				f.fail(err)
				return
			}
		case <-f.done:
			return
		}
	}
}

func (f *Face) fail(err error) {
	select {
	case <-f.done:
		// closed locally
		return
	default:
	}
	if errors.Is(err, io.EOF) {
		err = ErrRemoteClosed
	}
	f.mu.Lock()
	first := f.err == nil
	if first {
		f.err = err
	}
	f.mu.Unlock()
	if !first {
		return
	}
	f.log.Debug().Err(err).Msg("transport failed")
	f.onError(err)
}

// Err returns the transport error that ended I/O, if any.
func (f *Face) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Face) send(p packet.Packet) error {
	wire, err := p.Encode()
	if err != nil {
		return err
	}
	return f.enqueue(wire.Join())
}

// enqueue never blocks the loop. A peer that stops reading fills the queue
// and fails the face.
func (f *Face) enqueue(b []byte) error {
	select {
	case <-f.done:
		return ErrClosed
	default:
	}
	if err := f.Err(); err != nil {
		return err
	}
	select {
	case f.out <- b:
		return nil
	default:
		f.fail(ErrQueueFull)
		return ErrQueueFull
	}
}

func (f *Face) nextID() uint64 {
	f.lastID++
	return f.lastID
}

// ExpressInterest sends i and arranges for exactly one of the callbacks to
// run: onData when matching Data arrives, onNack on a network Nack, or
// onTimeout when the lifetime passes. Any callback may be nil.
func (f *Face) ExpressInterest(i *packet.Interest, onData DataCallback, onNack NackCallback, onTimeout TimeoutCallback) (PendingID, error) {
	i = i.Clone()
	if i.Nonce == nil {
		i.RefreshNonce()
	}
	wire, err := i.Encode()
	if err != nil {
		return 0, err
	}
	p := &pending{
		id:        PendingID(f.nextID()),
		interest:  i,
		onData:    onData,
		onNack:    onNack,
		onTimeout: onTimeout,
		sent:      time.Now(),
	}
	f.insert(p)
	if err := f.enqueue(wire.Join()); err != nil {
		f.remove(p)
		return 0, err
	}
	p.timer = f.sched.Schedule(i.LifetimeOrDefault(), func() {
		f.timeout(p)
	})
	f.log.Debug().Stringer("interest", i).Msg("interest sent")
	return p.id, nil
}

// RemovePendingInterest forgets an expressed Interest without running any of
// its callbacks.
func (f *Face) RemovePendingInterest(id PendingID) {
	p, ok := f.pending[id]
	if !ok {
		return
	}
	f.remove(p)
	f.sched.Cancel(p.timer)
}

// PendingCount returns the number of Interests awaiting an outcome.
func (f *Face) PendingCount() int {
	return len(f.pending)
}

func (f *Face) insert(p *pending) {
	f.pending[p.id] = p
	f.pit.Update(packet.Key(p.interest.Name), func(ps []*pending, _ bool) ([]*pending, bool) {
		return append(ps, p), true
	})
}

func (f *Face) remove(p *pending) {
	delete(f.pending, p.id)
	f.pit.Update(packet.Key(p.interest.Name), func(ps []*pending, _ bool) ([]*pending, bool) {
		kept := ps[:0]
		for _, q := range ps {
			if q != p {
				kept = append(kept, q)
			}
		}
		return kept, len(kept) > 0
	})
}

func (f *Face) timeout(p *pending) {
	if _, ok := f.pending[p.id]; !ok {
		return
	}
	f.remove(p)
	f.log.Debug().Stringer("interest", p.interest).Msg("interest timed out")
	if p.onTimeout != nil {
		p.onTimeout(p.interest)
	}
}

// settle removes p and cancels its timer before a callback runs.
func (f *Face) settle(p *pending) {
	f.remove(p)
	f.sched.Cancel(p.timer)
}

func (f *Face) dispatch(pkt packet.Packet) {
	switch p := pkt.(type) {
	case *packet.Data:
		f.onData(p)
	case *packet.Nack:
		f.onNack(p)
	case *packet.Interest:
		f.onInterest(p)
	}
}

func (f *Face) onData(d *packet.Data) {
	var satisfied []*pending
	f.pit.MatchAll(packet.Key(d.Name), func(_ int, ps []*pending) {
		for _, p := range ps {
			if p.interest.MatchesData(d) {
				satisfied = append(satisfied, p)
			}
		}
	})
	if len(satisfied) == 0 {
		f.log.Debug().Stringer("name", d.Name).Msg("drop unsolicited data")
		return
	}
	for _, p := range satisfied {
		f.settle(p)
	}
	for _, p := range satisfied {
		f.log.Debug().Stringer("name", d.Name).Dur("rtt", time.Since(p.sent)).Msg("data received")
		if p.onData != nil {
			p.onData(p.interest, d)
		}
	}
}

func (f *Face) onNack(n *packet.Nack) {
	ps, _ := f.pit.Get(packet.Key(n.Interest.Name))
	var matched []*pending
	for _, p := range ps {
		if sameNonce(p.interest.Nonce, n.Interest.Nonce) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		f.log.Debug().Stringer("nack", n).Msg("drop unsolicited nack")
		return
	}
	for _, p := range matched {
		f.settle(p)
		if p.onNack != nil {
			p.onNack(p.interest, n)
		}
	}
}

func sameNonce(a, b *uint64) bool {
	return a != nil && b != nil && *a == *b
}

func (f *Face) onInterest(i *packet.Interest) {
	flt, ok := f.filters.Match(packet.Key(i.Name))
	if !ok {
		f.log.Debug().Stringer("interest", i).Msg("no interest filter")
		return
	}
	flt.handler(flt.prefix, i)
}

// SetInterestFilter delivers incoming Interests under prefix to h. The
// longest matching prefix wins. A filter keeps the loop running until it is
// unset or the face closes.
func (f *Face) SetInterestFilter(prefix enc.Name, h InterestHandler) FilterID {
	flt := &filter{
		id:      FilterID(f.nextID()),
		prefix:  prefix,
		handler: h,
	}
	f.filters.Update(packet.Key(prefix), func(old *filter, ok bool) (*filter, bool) {
		if ok {
			delete(f.filterByID, old.id)
			f.loop.DoneWork()
		}
		return flt, true
	})
	f.filterByID[flt.id] = flt
	f.loop.AddWork()
	f.log.Debug().Stringer("prefix", prefix).Msg("interest filter set")
	return flt.id
}

func (f *Face) UnsetInterestFilter(id FilterID) {
	flt, ok := f.filterByID[id]
	if !ok {
		return
	}
	delete(f.filterByID, id)
	f.filters.Update(packet.Key(flt.prefix), func(*filter, bool) (*filter, bool) {
		return nil, false
	})
	f.loop.DoneWork()
}

func (f *Face) PutData(d *packet.Data) error {
	return f.send(d)
}

func (f *Face) PutNack(n *packet.Nack) error {
	return f.send(n)
}

// Close stops I/O and drops pending Interests and filters without running
// their callbacks. It returns the transport error, if one ended I/O earlier.
func (f *Face) Close() error {
	var result *multierror.Error
	f.closeOnce.Do(func() {
		close(f.done)
		if err := f.conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		f.wg.Wait()

		for _, p := range f.pending {
			f.settle(p)
		}
		for id := range f.filterByID {
			f.UnsetInterestFilter(id)
		}
		f.log.Debug().Msg("face closed")
	})
	if err := f.Err(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
