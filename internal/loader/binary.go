package loader

import (
	"io"
	"os"

	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/part"
)

// LoadPartition reads this rank's partition-local slice of both binary
// CSR directions described by m: a dense (n+1)-entry head array and a
// dense edge_count-entry adjacency array, each stored as fixed-width
// unsigned integers in the manifest's declared endian.
//
// Two-step recipe: read the whole head array once, then for each
// locally owned vertex copy only its own slice of the (potentially far
// larger) adjacency array out of the file. A rank never materializes
// the full global adjacency array.
func LoadPartition(m *Manifest, p part.Part) (fw, bw *graph.CSR, err error) {
	fw, err = loadDirection(m.FwHeadPath, m.FwCSRPath, m, p)
	if err != nil {
		return nil, nil, err
	}
	bw, err = loadDirection(m.BwHeadPath, m.BwCSRPath, m, p)
	if err != nil {
		return nil, nil, err
	}
	return fw, bw, nil
}

func loadDirection(headPath, csrPath string, m *Manifest, p part.Part) (*graph.CSR, error) {
	head, err := readDenseArray(headPath, m.HeadBytes, m.NodeCount+1, m.LittleEndian)
	if err != nil {
		return nil, err
	}
	if head[0] != 0 {
		return nil, newErr(AssumptionError, "%s: head[0] = %d, want 0", headPath, head[0])
	}
	if head[m.NodeCount] != m.EdgeCount {
		return nil, newErr(AssumptionError, "%s: head[n] = %d, want graph.edge_count = %d", headPath, head[m.NodeCount], m.EdgeCount)
	}

	csrFile, err := os.Open(csrPath)
	if err != nil {
		return nil, wrapErr(FilesystemError, err, "opening %s", csrPath)
	}
	defer csrFile.Close()

	localN := p.LocalN()
	var totalLocalM ids.Index
	localDegree := make([]uint64, localN)
	for k := ids.Vertex(0); k < localN; k++ {
		g := p.ToGlobal(k)
		d := head[g+1] - head[g]
		localDegree[k] = d
		totalLocalM += ids.Index(d)
	}

	csr := graph.NewCSR(localN, totalLocalM)
	pos := ids.Index(0)
	buf := make([]byte, 0)
	for k := ids.Vertex(0); k < localN; k++ {
		csr.Head[k] = pos
		g := p.ToGlobal(k)
		d := localDegree[k]
		if d == 0 {
			continue
		}
		byteLen := int(d) * m.CSRBytes
		if cap(buf) < byteLen {
			buf = make([]byte, byteLen)
		}
		buf = buf[:byteLen]
		if _, err := csrFile.ReadAt(buf, int64(head[g])*int64(m.CSRBytes)); err != nil && err != io.EOF {
			return nil, wrapErr(IOError, err, "reading %s at offset %d", csrPath, head[g])
		}
		for i := uint64(0); i < d; i++ {
			v := decodeWidth(buf[int(i)*m.CSRBytes:], m.CSRBytes, m.LittleEndian)
			if v >= m.NodeCount {
				return nil, newErr(AssumptionError, "%s: neighbor %d out of range [0,%d)", csrPath, v, m.NodeCount)
			}
			csr.Adj[int(pos)+int(i)] = ids.Vertex(v)
		}
		pos += ids.Index(d)
	}
	csr.Head[localN] = pos

	return csr, nil
}

// readDenseArray reads the whole file at path as count fixed-width
// unsigned integers and returns them widened to uint64.
func readDenseArray(path string, width int, count uint64, littleEndian bool) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(FilesystemError, err, "opening %s", path)
	}
	defer f.Close()

	raw := make([]byte, int(count)*width)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, wrapErr(IOError, err, "reading %s: expected %d bytes of %d-wide entries", path, len(raw), width)
	}

	out := make([]uint64, count)
	for i := range out {
		out[i] = decodeWidth(raw[i*width:], width, littleEndian)
	}
	return out, nil
}

// decodeWidth decodes a width-byte (1..8) unsigned integer from the
// front of b in the given endian order.
func decodeWidth(b []byte, width int, littleEndian bool) uint64 {
	var v uint64
	if littleEndian {
		for i := width - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
	} else {
		for i := 0; i < width; i++ {
			v = v<<8 | uint64(b[i])
		}
	}
	return v
}
