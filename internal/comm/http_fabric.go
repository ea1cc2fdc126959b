package comm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/kaspan/internal/ids"
)

// HTTPFabric is the networked Fabric: one OS process per rank,
// reachable by address, communicating over real HTTP rather than
// shared-memory scratch. addrs is the fixed rank-indexed address table;
// the /deliver handler is each rank's inbound message endpoint.
//
// Every collective round is tagged with a monotonically increasing
// round number local to the calling Fabric instance plus a string kind
// (e.g. "allreduce_sum"), so out-of-order delivery across in-flight
// rounds can never cross-contaminate two different collectives. Ranks
// must reach the same collectives in the same order, which keeps the
// independently-incremented round counters in lockstep.
type HTTPFabric struct {
	rank     ids.Rank
	addrs    []string // addrs[r] is rank r's "host:port"
	client   *http.Client
	server   *http.Server
	mailbox  *mailbox
	round    int64
	indirect IndirectionScheme
}

// IndirectionScheme selects how a rank's point-to-point sends are
// routed (kconfig.AsyncVariant picks the concrete scheme).
type IndirectionScheme interface {
	// Route returns the address a message from `from` to `to` should
	// actually be sent to first (itself for noop-indirection, a grid
	// relay for grid-indirection; relays are expected to forward, which
	// this minimal engine realizes by having every rank also run the
	// relay handler and re-POST to the true destination).
	Route(from, to ids.Rank, addrs []string) string
}

// DirectRoute is the "noop-indirection" scheme: always send straight to
// the destination.
type DirectRoute struct{}

func (DirectRoute) Route(_, to ids.Rank, addrs []string) string { return addrs[to] }

type envelope struct {
	Round   int64           `json:"round"`
	Kind    string          `json:"kind"`
	From    ids.Rank        `json:"from"`
	To      ids.Rank        `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// NewHTTPFabric starts this rank's inbound HTTP server on addrs[rank]
// and returns a Fabric ready to participate in collectives with the
// other ranks at addrs. Call Close when done.
func NewHTTPFabric(rank ids.Rank, addrs []string, indirect IndirectionScheme) (*HTTPFabric, error) {
	if indirect == nil {
		indirect = DirectRoute{}
	}
	f := &HTTPFabric{
		rank:     rank,
		addrs:    addrs,
		client:   &http.Client{Timeout: 10 * time.Second},
		mailbox:  newMailbox(),
		indirect: indirect,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/deliver", f.handleDeliver)
	f.server = &http.Server{Addr: addrs[rank], Handler: mux}

	ln, err := listen(addrs[rank])
	if err != nil {
		return nil, fmt.Errorf("binding rank %d to %s: %w", rank, addrs[rank], err)
	}
	go func() { _ = f.server.Serve(ln) }()

	return f, nil
}

// Close shuts down this rank's inbound server.
func (f *HTTPFabric) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}

func (f *HTTPFabric) handleDeliver(w http.ResponseWriter, r *http.Request) {
	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if env.To != f.rank {
		// Arrived at an intermediary under grid-indirection: forward to
		// the true destination and do not deliver locally.
		f.forward(env)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	f.mailbox.Put(env.Round, env.Kind, env.From, env.Payload)
	w.WriteHeader(http.StatusOK)
}

func (f *HTTPFabric) forward(env envelope) {
	dest := f.addrs[env.To]
	body, _ := json.Marshal(env)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+dest+"/deliver", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err == nil {
		resp.Body.Close()
	}
}

func (f *HTTPFabric) sendTo(round int64, kind string, to ids.Rank, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if to == f.rank {
		f.mailbox.Put(round, kind, f.rank, raw)
		return nil
	}
	env := envelope{Round: round, Kind: kind, From: f.rank, To: to, Payload: raw}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	hop := f.indirect.Route(f.rank, to, f.addrs)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+hop+"/deliver", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http deliver to rank %d (%s): status %d", to, hop, resp.StatusCode)
	}
	return nil
}

// sendToAll fans the same payload out to every rank concurrently.
func (f *HTTPFabric) sendToAll(round int64, kind string, payload any) error {
	var g errgroup.Group
	for r := 0; r < len(f.addrs); r++ {
		r := ids.Rank(r)
		g.Go(func() error { return f.sendTo(round, kind, r, payload) })
	}
	return g.Wait()
}

func (f *HTTPFabric) nextRound() int64 { return atomic.AddInt64(&f.round, 1) }

func decodeAll[T any](raws [][]byte) []T {
	out := make([]T, len(raws))
	for i, raw := range raws {
		json.Unmarshal(raw, &out[i])
	}
	return out
}

func (f *HTTPFabric) Rank() ids.Rank { return f.rank }
func (f *HTTPFabric) WorldSize() int { return len(f.addrs) }

func (f *HTTPFabric) AllreduceSum(local int64) int64 {
	round := f.nextRound()
	_ = f.sendToAll(round, "allreduce_sum", local)
	vals := decodeAll[int64](f.mailbox.WaitAll(round, "allreduce_sum", f.WorldSize()))
	return reduceSum(vals)
}

func (f *HTTPFabric) AllreduceMaxDegree(local DegreePivot) DegreePivot {
	round := f.nextRound()
	_ = f.sendToAll(round, "allreduce_max_degree", local)
	vals := decodeAll[DegreePivot](f.mailbox.WaitAll(round, "allreduce_max_degree", f.WorldSize()))
	return reduceMaxDegree(vals)
}

func (f *HTTPFabric) Alltoall(sendCounts []int) []int {
	round := f.nextRound()
	var g errgroup.Group
	for r := 0; r < f.WorldSize(); r++ {
		r := r
		g.Go(func() error { return f.sendTo(round, "alltoall", ids.Rank(r), sendCounts[r]) })
	}
	_ = g.Wait()
	vals := decodeAll[int](f.mailbox.WaitAll(round, "alltoall", f.WorldSize()))
	return vals
}

func (f *HTTPFabric) AlltoallVertices(perDest [][]ids.Vertex) []ids.Vertex {
	round := f.nextRound()
	var g errgroup.Group
	for r := 0; r < f.WorldSize(); r++ {
		r := r
		g.Go(func() error { return f.sendTo(round, "alltoall_vertices", ids.Rank(r), perDest[r]) })
	}
	_ = g.Wait()
	batches := decodeAll[[]ids.Vertex](f.mailbox.WaitAll(round, "alltoall_vertices", f.WorldSize()))
	return flattenVertices(batches)
}

func (f *HTTPFabric) AlltoallEdges(perDest [][]Edge) []Edge {
	round := f.nextRound()
	var g errgroup.Group
	for r := 0; r < f.WorldSize(); r++ {
		r := r
		g.Go(func() error { return f.sendTo(round, "alltoall_edges", ids.Rank(r), perDest[r]) })
	}
	_ = g.Wait()
	batches := decodeAll[[]Edge](f.mailbox.WaitAll(round, "alltoall_edges", f.WorldSize()))
	return flattenEdges(batches)
}

func (f *HTTPFabric) AllgatherInt(local int) []int {
	round := f.nextRound()
	_ = f.sendToAll(round, "allgather_int", local)
	return decodeAll[int](f.mailbox.WaitAll(round, "allgather_int", f.WorldSize()))
}

func (f *HTTPFabric) AllgathervVertices(local []ids.Vertex) ([]ids.Vertex, []int) {
	round := f.nextRound()
	_ = f.sendToAll(round, "allgatherv_vertices", local)
	batches := decodeAll[[]ids.Vertex](f.mailbox.WaitAll(round, "allgatherv_vertices", f.WorldSize()))
	return flattenVertices(batches), countsOf(batches)
}

func (f *HTTPFabric) AllgathervEdges(local []Edge) ([]Edge, []int) {
	round := f.nextRound()
	_ = f.sendToAll(round, "allgatherv_edges", local)
	batches := decodeAll[[]Edge](f.mailbox.WaitAll(round, "allgatherv_edges", f.WorldSize()))
	return flattenEdges(batches), countsOf(batches)
}

func (f *HTTPFabric) Broadcast(root ids.Rank, value ids.Vertex) ids.Vertex {
	round := f.nextRound()
	if f.rank == root {
		_ = f.sendToAll(round, "broadcast", value)
	}
	vals := decodeAll[ids.Vertex](f.mailbox.WaitAll(round, "broadcast", 1))
	return vals[0]
}

func (f *HTTPFabric) Barrier() {
	round := f.nextRound()
	_ = f.sendToAll(round, "barrier", struct{}{})
	f.mailbox.WaitAll(round, "barrier", f.WorldSize())
}

func countsOf[T any](batches [][]T) []int {
	counts := make([]int, len(batches))
	for i, b := range batches {
		counts[i] = len(b)
	}
	return counts
}

func reduceSum(vals []int64) int64 {
	var total int64
	for _, v := range vals {
		total += v
	}
	return total
}

func reduceMaxDegree(vals []DegreePivot) DegreePivot {
	best := vals[0]
	for _, v := range vals[1:] {
		best = DegreeMaxReduce(best, v)
	}
	return best
}

func flattenVertices(batches [][]ids.Vertex) []ids.Vertex {
	var all []ids.Vertex
	for _, b := range batches {
		all = append(all, b...)
	}
	return all
}

func flattenEdges(batches [][]Edge) []Edge {
	var all []Edge
	for _, b := range batches {
		all = append(all, b...)
	}
	return all
}

// listen is a thin net.Listen wrapper kept in its own function so the
// concrete network type is isolated to one call site.
func listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// FreePort reserves an OS-assigned loopback port and returns its
// "host:port" address, closing the reservation immediately. A caller
// that needs a set of addresses before any HTTPFabric exists (tests,
// cmd/bench's local-process simulation of multiple ranks) calls this
// once per rank to build that list, accepting the small bind-race this
// pattern always carries.
func FreePort() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		return "", err
	}
	return addr, nil
}
