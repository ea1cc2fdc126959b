package residual

import (
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
)

// TarjanFrame is one level of the explicit DFS call stack Tarjan uses
// in place of recursion, so deep graphs cannot overflow the goroutine
// stack.
type TarjanFrame struct {
	v    ids.Vertex
	next ids.Index // cursor into csr.Adj[csr.Head[v]:csr.Head[v+1]]
}

// Tarjan runs Tarjan's strongly-connected-components algorithm over csr
// (a CSR covering vertices [0, n)) and calls onSCC once per discovered
// component with its member sub-ids, in arbitrary order. Exported so
// internal/scc's optional local trim-Tarjan pre-pass (Config.TrimTarjan)
// can reuse it over a restricted local CSR instead of duplicating the
// algorithm.
func Tarjan(csr *graph.CSR, n ids.Vertex, onSCC func(members []ids.Vertex)) {
	index := make([]int32, n)
	lowlink := make([]int32, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var lowStack []ids.Vertex // Tarjan's low-link stack
	var work []TarjanFrame    // explicit DFS frame stack
	counter := int32(0)

	for start := ids.Vertex(0); start < n; start++ {
		if index[start] != -1 {
			continue
		}
		index[start] = counter
		lowlink[start] = counter
		counter++
		lowStack = append(lowStack, start)
		onStack[start] = true
		work = append(work, TarjanFrame{v: start, next: csr.Head[start]})

		for len(work) > 0 {
			top := &work[len(work)-1]
			v := top.v

			if top.next < csr.Head[v+1] {
				w := csr.Adj[top.next]
				top.next++
				switch {
				case index[w] == -1:
					index[w] = counter
					lowlink[w] = counter
					counter++
					lowStack = append(lowStack, w)
					onStack[w] = true
					work = append(work, TarjanFrame{v: w, next: csr.Head[w]})
				case onStack[w]:
					if index[w] < lowlink[v] {
						lowlink[v] = index[w]
					}
				}
				continue
			}

			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if lowlink[v] < lowlink[parent.v] {
					lowlink[parent.v] = lowlink[v]
				}
			}
			if lowlink[v] == index[v] {
				var members []ids.Vertex
				for {
					w := lowStack[len(lowStack)-1]
					lowStack = lowStack[:len(lowStack)-1]
					onStack[w] = false
					members = append(members, w)
					if w == v {
						break
					}
				}
				onSCC(members)
			}
		}
	}
}
