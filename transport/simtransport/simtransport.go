// Package simtransport is an in-memory transport.Transport implementation
// that simulates N ranks as N goroutines communicating over channels
// within a single process. It exists so the core packages (which are
// themselves single-threaded and goroutine-free, per the concurrency
// model) can be driven and tested without a real message-passing
// library: simtransport plays the role MPI or a cluster fabric would
// play in production, exactly as a real transport would use OS threads
// internally without the calling code knowing.
package simtransport

import (
	"errors"
	"reflect"
	"sync"

	"github.com/mrjoshuak/go-radixcompose/transport"
)

// gatherTag is a reserved message tag used internally by Gather. It must
// not collide with any tag the composer packages use; those start at
// 1000 (compose's tile transfers) and stay non-negative, so a large
// negative value is safe.
const gatherTag = -9999

// message is one in-flight payload, already owning a private copy of its
// data so the sender's buffer can be reused immediately after Isend
// returns.
type message struct {
	src, tag int
	data     []byte
}

// World holds the N simulated ranks' inboxes. Create one World per test
// or demo run and call Endpoint(rank) once per rank.
type World struct {
	inboxes []chan message
}

// NewWorld creates a World of n ranks.
func NewWorld(n int) *World {
	w := &World{inboxes: make([]chan message, n)}
	for i := range w.inboxes {
		w.inboxes[i] = make(chan message, 64)
	}
	return w
}

// Endpoint returns the transport.Transport view for rank. Each rank must
// call this exactly once and use the result for every subsequent
// transport call it makes.
func (w *World) Endpoint(rank int) transport.Transport {
	e := &endpoint{world: w, rank: rank}
	e.cond = sync.NewCond(&e.mu)
	go e.drain()
	return e
}

// request is the simtransport Request: a single-value, single-fire
// completion channel.
type request struct {
	done chan error
}

func newRequest() *request {
	return &request{done: make(chan error, 1)}
}

type endpoint struct {
	world *World
	rank  int

	mu    sync.Mutex
	cond  *sync.Cond
	queue []message
}

// drain continuously moves messages off this rank's inbox channel into
// the local queue, broadcasting to any blocked receivers. Running this as
// its own goroutine (rather than having Irecv read the channel directly)
// lets multiple concurrently pending Irecv calls share one inbox without
// racing each other for channel reads.
func (e *endpoint) drain() {
	for m := range e.world.inboxes[e.rank] {
		e.mu.Lock()
		e.queue = append(e.queue, m)
		e.cond.Broadcast()
		e.mu.Unlock()
	}
}

// findMatch returns the queue index of the first queued message from
// peer under tag, preserving arrival order for that (peer, tag) pair.
func (e *endpoint) findMatch(peer, tag int) int {
	for i, m := range e.queue {
		if m.src == peer && m.tag == tag {
			return i
		}
	}
	return -1
}

func (e *endpoint) Isend(buf []byte, peer, tag int) (transport.Request, error) {
	data := make([]byte, len(buf))
	copy(data, buf)
	req := newRequest()
	go func() {
		e.world.inboxes[peer] <- message{src: e.rank, tag: tag, data: data}
		req.done <- nil
	}()
	return req, nil
}

func (e *endpoint) Irecv(buf []byte, peer, tag int) (transport.Request, error) {
	req := newRequest()
	go func() {
		e.mu.Lock()
		for {
			if idx := e.findMatch(peer, tag); idx >= 0 {
				m := e.queue[idx]
				e.queue = append(e.queue[:idx], e.queue[idx+1:]...)
				e.mu.Unlock()
				copy(buf, m.data)
				req.done <- nil
				return
			}
			e.cond.Wait()
		}
	}()
	return req, nil
}

// WaitAny blocks until one of reqs completes, returning its index and
// clearing that slot to nil (mirroring MPI_Waitany) so callers can pass
// the same slice into repeated WaitAny calls without re-selecting an
// already-completed request.
func (e *endpoint) WaitAny(reqs []transport.Request) (int, error) {
	cases := make([]reflect.SelectCase, 0, len(reqs))
	indices := make([]int, 0, len(reqs))
	for i, r := range reqs {
		if r == nil {
			continue
		}
		req := r.(*request)
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(req.done)})
		indices = append(indices, i)
	}
	if len(cases) == 0 {
		return -1, errors.New("simtransport: WaitAny called with no pending requests")
	}
	chosen, recv, _ := reflect.Select(cases)
	idx := indices[chosen]
	reqs[idx] = nil
	if recv.IsNil() {
		return idx, nil
	}
	return idx, recv.Interface().(error)
}

func (e *endpoint) WaitAll(reqs []transport.Request) error {
	for i, r := range reqs {
		if r == nil {
			continue
		}
		req := r.(*request)
		if err := <-req.done; err != nil {
			return err
		}
		reqs[i] = nil
	}
	return nil
}

func (e *endpoint) Send(buf []byte, peer, tag int) error {
	req, err := e.Isend(buf, peer, tag)
	if err != nil {
		return err
	}
	return e.WaitAll([]transport.Request{req})
}

// Gather collects buf from every rank in ranks to root using a reserved
// internal tag. Only one Gather call may be in flight at a time for a
// given root across the whole World; the composer packages call it only
// from compose.Session.collect, once per tile, so this is not a
// restriction in practice.
func (e *endpoint) Gather(buf []byte, ranks []int, root int) ([][]byte, error) {
	if e.rank != root {
		return nil, e.Send(buf, root, gatherTag)
	}

	out := make([][]byte, len(ranks))
	for i, r := range ranks {
		if r == root {
			out[i] = append([]byte(nil), buf...)
			continue
		}
		recvBuf := make([]byte, len(buf))
		req, err := e.Irecv(recvBuf, r, gatherTag)
		if err != nil {
			return nil, err
		}
		if err := e.WaitAll([]transport.Request{req}); err != nil {
			return nil, err
		}
		out[i] = recvBuf
	}
	return out, nil
}
