// Package transport defines the message-passing interface the composer
// drives. It is a collaborator boundary, not an implementation: the real
// network transport lives outside this module (MPI, a cluster fabric,
// whatever the embedder already uses). The only implementation here is
// transport/simtransport, which exists to make the core testable and
// runnable in a single process without a real cluster.
package transport

// Request is an opaque handle to an in-flight non-blocking send or
// receive, returned by Isend/Irecv and consumed by WaitAny/WaitAll.
type Request interface{}

// Transport is the non-blocking message-passing collaborator the
// composer requires. Implementations must deliver messages in-order per
// (source, destination, tag) triple; beyond that, no ordering between
// distinct triples is guaranteed.
type Transport interface {
	// Isend posts a non-blocking send of buf to peer under tag. The
	// caller must not mutate buf until the returned request completes.
	Isend(buf []byte, peer, tag int) (Request, error)

	// Irecv posts a non-blocking receive into buf from peer under tag.
	// The caller must not read or mutate buf until the request completes.
	Irecv(buf []byte, peer, tag int) (Request, error)

	// WaitAny blocks until at least one of reqs completes, returning its
	// index. Nil entries (a no-op request, e.g. "send to self") are
	// skipped. On return, WaitAny sets reqs[idx] = nil, mirroring
	// MPI_Waitany, so callers may pass the same slice into repeated
	// WaitAny calls without re-selecting an already-completed request.
	WaitAny(reqs []Request) (int, error)

	// WaitAll blocks until every request in reqs completes.
	WaitAll(reqs []Request) error

	// Send performs a blocking send.
	Send(buf []byte, peer, tag int) error

	// Gather collects one buffer from every rank in ranks to root. On
	// root it returns one buffer per rank in ranks, in that order; on any
	// other rank it returns nil. Every participant, including root, must
	// call Gather with a buf of the same length; a variable-length
	// payload must be padded by the caller to a common maximum first.
	Gather(buf []byte, ranks []int, root int) ([][]byte, error)
}
