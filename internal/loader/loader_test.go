package loader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/dreamware/kaspan/internal/part"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir string, extra map[string]string) string {
	t.Helper()
	fields := map[string]string{
		"schema.version":                 "1",
		"graph.code":                     "kagen-gnm",
		"graph.name":                     "toy",
		"graph.endian":                   "little",
		"graph.node_count":               "4",
		"graph.edge_count":               "4",
		"graph.contains_self_loops":      "false",
		"graph.contains_duplicate_edges": "false",
		"graph.head.bytes":               "8",
		"graph.csr.bytes":                "8",
		"fw.head.path":                   "fw.head.bin",
		"fw.csr.path":                    "fw.csr.bin",
		"bw.head.path":                   "bw.head.bin",
		"bw.csr.path":                    "bw.csr.bin",
	}
	for k, v := range extra {
		fields[k] = v
	}
	var buf []byte
	buf = append(buf, []byte("% generated for test\n")...)
	for _, key := range manifestKeyOrder {
		if v, ok := fields[key]; ok {
			buf = append(buf, []byte(key+" "+v+"\n")...)
		}
	}
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

var manifestKeyOrder = []string{
	"schema.version", "graph.code", "graph.name", "graph.endian",
	"graph.node_count", "graph.edge_count", "graph.contains_self_loops",
	"graph.contains_duplicate_edges", "graph.head.bytes", "graph.csr.bytes",
	"fw.head.path", "fw.csr.path", "bw.head.path", "bw.csr.path",
}

func writeU64LE(t *testing.T, path string, values []uint64) {
	t.Helper()
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

// A 4-cycle 0->1->2->3->0, manifest + binary files written to disk, then
// parsed back through LoadManifest + LoadPartition.
func writeCycleGraph(t *testing.T, dir string) string {
	t.Helper()
	writeU64LE(t, filepath.Join(dir, "fw.head.bin"), []uint64{0, 1, 2, 3, 4})
	writeU64LE(t, filepath.Join(dir, "fw.csr.bin"), []uint64{1, 2, 3, 0})
	writeU64LE(t, filepath.Join(dir, "bw.head.bin"), []uint64{0, 1, 2, 3, 4})
	writeU64LE(t, filepath.Join(dir, "bw.csr.bin"), []uint64{3, 0, 1, 2})
	return writeManifest(t, dir, nil)
}

func TestLoadManifestHappyPath(t *testing.T) {
	dir := t.TempDir()
	path := writeCycleGraph(t, dir)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.EqualValues(t, 1, m.SchemaVersion)
	require.Equal(t, "kagen-gnm", m.GraphCode)
	require.True(t, m.LittleEndian)
	require.EqualValues(t, 4, m.NodeCount)
	require.EqualValues(t, 4, m.EdgeCount)
	require.Equal(t, 8, m.HeadBytes)
	require.Equal(t, 8, m.CSRBytes)
	require.FileExists(t, m.FwHeadPath)
}

func TestLoadManifestRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	writeCycleGraph(t, dir)
	path := filepath.Join(dir, "manifest.txt")
	existing, err := os.ReadFile(path)
	require.NoError(t, err)
	withJunk := append(existing, []byte("graph.bogus_key 1\n")...)
	require.NoError(t, os.WriteFile(path, withJunk, 0o644))

	_, err = LoadManifest(path)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, DeserializeError, lerr.Kind)
}

func TestLoadManifestMissingKeyFails(t *testing.T) {
	dir := t.TempDir()
	writeU64LE(t, filepath.Join(dir, "fw.head.bin"), []uint64{0})
	writeU64LE(t, filepath.Join(dir, "fw.csr.bin"), []uint64{})
	writeU64LE(t, filepath.Join(dir, "bw.head.bin"), []uint64{0})
	writeU64LE(t, filepath.Join(dir, "bw.csr.bin"), []uint64{})

	buf := []byte("graph.code x\n") // missing schema.version entirely
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, DeserializeError, lerr.Kind)
}

func TestLoadManifestMissingBinaryFileIsFilesystemError(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, map[string]string{"fw.head.path": "does-not-exist.bin"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fw.csr.bin"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bw.head.bin"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bw.csr.bin"), nil, 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, FilesystemError, lerr.Kind)
}

func TestLoadPartitionSplitsCycleAcrossRanks(t *testing.T) {
	dir := t.TempDir()
	path := writeCycleGraph(t, dir)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	p0 := part.NewTrivialSlice(4, 0, 2)
	fw0, bw0, err := LoadPartition(m, p0)
	require.NoError(t, err)
	require.EqualValues(t, []int64{0, 1, 2}, fw0.Head)
	require.EqualValues(t, []int64{1, 2}, fw0.Adj)
	require.EqualValues(t, []int64{3, 0}, bw0.Adj)

	p1 := part.NewTrivialSlice(4, 1, 2)
	fw1, bw1, err := LoadPartition(m, p1)
	require.NoError(t, err)
	require.EqualValues(t, []int64{0, 1, 2}, fw1.Head)
	require.EqualValues(t, []int64{3, 0}, fw1.Adj)
	require.EqualValues(t, []int64{1, 2}, bw1.Adj)
}

func TestLoadPartitionRejectsHeadMismatch(t *testing.T) {
	dir := t.TempDir()
	writeU64LE(t, filepath.Join(dir, "fw.head.bin"), []uint64{0, 1, 2, 3, 99}) // wrong last entry
	writeU64LE(t, filepath.Join(dir, "fw.csr.bin"), []uint64{1, 2, 3, 0})
	writeU64LE(t, filepath.Join(dir, "bw.head.bin"), []uint64{0, 1, 2, 3, 4})
	writeU64LE(t, filepath.Join(dir, "bw.csr.bin"), []uint64{3, 0, 1, 2})
	path := writeManifest(t, dir, nil)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	p := part.NewTrivialSlice(4, 0, 1)
	_, _, err = LoadPartition(m, p)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, AssumptionError, lerr.Kind)
}

func TestLoadPartitionSupportsNarrowByteWidths(t *testing.T) {
	dir := t.TempDir()
	// 2-byte head/csr entries, big-endian, a 3-node path graph 0->1->2.
	headBuf := make([]byte, 2*4)
	for i, v := range []uint16{0, 1, 2, 2} {
		binary.BigEndian.PutUint16(headBuf[i*2:], v)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fw.head.bin"), headBuf, 0o644))
	csrBuf := make([]byte, 2*2)
	for i, v := range []uint16{1, 2} {
		binary.BigEndian.PutUint16(csrBuf[i*2:], v)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fw.csr.bin"), csrBuf, 0o644))

	bwHeadBuf := make([]byte, 2*4)
	for i, v := range []uint16{0, 0, 1, 2} {
		binary.BigEndian.PutUint16(bwHeadBuf[i*2:], v)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bw.head.bin"), bwHeadBuf, 0o644))
	bwCsrBuf := make([]byte, 2*2)
	for i, v := range []uint16{0, 1} {
		binary.BigEndian.PutUint16(bwCsrBuf[i*2:], v)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bw.csr.bin"), bwCsrBuf, 0o644))

	path := writeManifest(t, dir, map[string]string{
		"graph.endian":     "big",
		"graph.node_count": "3",
		"graph.edge_count": "2",
		"graph.head.bytes": "2",
		"graph.csr.bytes":  "2",
	})
	m, err := LoadManifest(path)
	require.NoError(t, err)

	p := part.NewTrivialSlice(3, 0, 1)
	fw, bw, err := LoadPartition(m, p)
	require.NoError(t, err)
	require.EqualValues(t, []int64{0, 1, 2, 2}, fw.Head)
	require.EqualValues(t, []int64{1, 2}, fw.Adj)
	require.EqualValues(t, []int64{0, 0, 1, 2}, bw.Head)
	require.EqualValues(t, []int64{0, 1}, bw.Adj)
}
