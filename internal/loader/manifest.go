package loader

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Manifest is the parsed form of the plain-text graph manifest:
// schema + graph metadata plus the four binary file paths, already
// resolved to absolute paths relative to the manifest's own directory.
type Manifest struct {
	SchemaVersion uint32
	GraphCode     string
	GraphName     string
	LittleEndian  bool

	// NodeCount and EdgeCount stay raw file-format integers rather than
	// internal/ids.Vertex/Index here; they're cast once they're
	// combined with a partition in binary.go.
	NodeCount uint64
	EdgeCount uint64

	ContainsSelfLoops      bool
	ContainsDuplicateEdges bool

	HeadBytes int
	CSRBytes  int

	FwHeadPath string
	FwCSRPath  string
	BwHeadPath string
	BwCSRPath  string
}

var manifestKeys = map[string]bool{
	"schema.version":                 true,
	"graph.code":                     true,
	"graph.name":                     true,
	"graph.endian":                   true,
	"graph.node_count":               true,
	"graph.edge_count":               true,
	"graph.contains_self_loops":      true,
	"graph.contains_duplicate_edges": true,
	"graph.head.bytes":               true,
	"graph.csr.bytes":                true,
	"fw.head.path":                   true,
	"fw.csr.path":                    true,
	"bw.head.path":                   true,
	"bw.csr.path":                    true,
}

// LoadManifest parses and validates the manifest at path. Lines are
// "key SP value"; % starts a comment; unknown and duplicate keys are
// rejected. Relative paths inside the manifest are resolved against
// the manifest's own directory and checked to exist as regular files.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(FilesystemError, err, "opening manifest %q", path)
	}
	defer f.Close()

	kv, err := parseKV(f)
	if err != nil {
		return nil, err
	}

	get := func(key string) (string, error) {
		v, ok := kv[key]
		if !ok {
			return "", newErr(DeserializeError, "manifest missing required key %q", key)
		}
		return v, nil
	}

	var m Manifest
	base := filepath.Dir(path)

	if v, err := get("schema.version"); err != nil {
		return nil, err
	} else if n, perr := strconv.ParseUint(v, 10, 32); perr != nil {
		return nil, wrapErr(DeserializeError, perr, "schema.version %q is not a u32", v)
	} else {
		m.SchemaVersion = uint32(n)
	}

	if v, err := get("graph.code"); err != nil {
		return nil, err
	} else {
		m.GraphCode = v
	}
	if v, err := get("graph.name"); err != nil {
		return nil, err
	} else {
		m.GraphName = v
	}

	if v, err := get("graph.endian"); err != nil {
		return nil, err
	} else {
		switch v {
		case "little":
			m.LittleEndian = true
		case "big":
			m.LittleEndian = false
		default:
			return nil, newErr(DeserializeError, "graph.endian must be 'little' or 'big', got %q", v)
		}
	}

	if v, err := get("graph.node_count"); err != nil {
		return nil, err
	} else if n, perr := strconv.ParseUint(v, 10, 64); perr != nil {
		return nil, wrapErr(DeserializeError, perr, "graph.node_count %q is not a u64", v)
	} else {
		m.NodeCount = n
	}
	if v, err := get("graph.edge_count"); err != nil {
		return nil, err
	} else if n, perr := strconv.ParseUint(v, 10, 64); perr != nil {
		return nil, wrapErr(DeserializeError, perr, "graph.edge_count %q is not a u64", v)
	} else {
		m.EdgeCount = n
	}

	if v, err := get("graph.contains_self_loops"); err != nil {
		return nil, err
	} else if b, perr := parseManifestBool(v); perr != nil {
		return nil, perr
	} else {
		m.ContainsSelfLoops = b
	}
	if v, err := get("graph.contains_duplicate_edges"); err != nil {
		return nil, err
	} else if b, perr := parseManifestBool(v); perr != nil {
		return nil, perr
	} else {
		m.ContainsDuplicateEdges = b
	}

	if v, err := get("graph.head.bytes"); err != nil {
		return nil, err
	} else if n, perr := parseByteWidth(v); perr != nil {
		return nil, perr
	} else {
		m.HeadBytes = n
	}
	if v, err := get("graph.csr.bytes"); err != nil {
		return nil, err
	} else if n, perr := parseByteWidth(v); perr != nil {
		return nil, perr
	} else {
		m.CSRBytes = n
	}

	resolve := func(key string) (string, error) {
		v, err := get(key)
		if err != nil {
			return "", err
		}
		full := filepath.Join(base, v)
		info, statErr := os.Stat(full)
		if statErr != nil {
			return "", wrapErr(FilesystemError, statErr, "resolving %s %q", key, v)
		}
		if !info.Mode().IsRegular() {
			return "", newErr(FilesystemError, "%s %q is not a regular file", key, v)
		}
		return full, nil
	}

	if m.FwHeadPath, err = resolve("fw.head.path"); err != nil {
		return nil, err
	}
	if m.FwCSRPath, err = resolve("fw.csr.path"); err != nil {
		return nil, err
	}
	if m.BwHeadPath, err = resolve("bw.head.path"); err != nil {
		return nil, err
	}
	if m.BwCSRPath, err = resolve("bw.csr.path"); err != nil {
		return nil, err
	}

	return &m, nil
}

func parseKV(r io.Reader) (map[string]string, error) {
	kv := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			return nil, newErr(DeserializeError, "malformed manifest line %q: no key/value separator", line)
		}
		key := line[:sp]
		value := strings.TrimLeft(line[sp:], " ")
		if !manifestKeys[key] {
			return nil, newErr(DeserializeError, "unknown manifest key %q", key)
		}
		if _, dup := kv[key]; dup {
			return nil, newErr(DeserializeError, "duplicate manifest key %q", key)
		}
		kv[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, wrapErr(IOError, err, "reading manifest")
	}
	return kv, nil
}

func parseManifestBool(v string) (bool, error) {
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, newErr(DeserializeError, "expected 'true' or 'false', got %q", v)
	}
}

func parseByteWidth(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, wrapErr(DeserializeError, err, "byte width %q is not an integer", v)
	}
	if n < 1 || n > 8 {
		return 0, newErr(DeserializeError, "byte width %d out of range [1,8]", n)
	}
	return n, nil
}
