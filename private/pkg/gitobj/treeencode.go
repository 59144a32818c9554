package gitobj

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
)

// Entry is one row of a Git tree object.
type Entry struct {
	Name string
	Type artifact.ObjectType
	Hash string // raw hex, native (SHA-1) hash space
}

func modeFor(t artifact.ObjectType) (string, error) {
	switch t {
	case artifact.ObjectTypeFile:
		return "100644", nil
	case artifact.ObjectTypeExecutable:
		return "100755", nil
	case artifact.ObjectTypeSymlink:
		return "120000", nil
	case artifact.ObjectTypeTree:
		return "40000", nil
	default:
		return "", fmt.Errorf("gitobj: unknown object type %v", t)
	}
}

func modeToType(mode string) (artifact.ObjectType, error) {
	switch mode {
	case "100644", "100664":
		return artifact.ObjectTypeFile, nil
	case "100755":
		return artifact.ObjectTypeExecutable, nil
	case "120000":
		return artifact.ObjectTypeSymlink, nil
	case "040000", "40000":
		return artifact.ObjectTypeTree, nil
	default:
		return 0, fmt.Errorf("gitobj: unknown tree entry mode %q", mode)
	}
}

// sortKeyName is Git's custom tree-sort key: directory entries sort as if
// their name carried a trailing "/". A directory "foo" (key "foo/")
// therefore sorts after a file "foo.c", since '/' is greater than '.',
// while a file "foo" sorts before "foo.c". Grounded on spec.md §4.4's create_shallow_tree
// ordering requirement.
func sortKeyName(e Entry) string {
	if e.Type.IsTree() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries sorts entries in place using Git's tree ordering.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return sortKeyName(entries[i]) < sortKeyName(entries[j])
	})
}

// EncodeTree renders entries (already sorted by SortEntries) as the raw
// body of a Git tree object: repeated "<mode> <name>\0<20-byte-raw-sha1>".
func EncodeTree(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		mode, err := modeFor(e.Type)
		if err != nil {
			return nil, err
		}
		rawHash, err := hex.DecodeString(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("gitobj: invalid hash for entry %q: %w", e.Name, err)
		}
		if len(rawHash) != 20 {
			return nil, fmt.Errorf("gitobj: entry %q hash must decode to 20 bytes, got %d", e.Name, len(rawHash))
		}
		buf.WriteString(mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(rawHash)
	}
	return buf.Bytes(), nil
}

// DecodeTree parses a Git tree object body into its entries.
func DecodeTree(body []byte) ([]Entry, error) {
	var entries []Entry
	for len(body) > 0 {
		spaceIdx := bytes.IndexByte(body, ' ')
		if spaceIdx < 0 {
			return nil, fmt.Errorf("gitobj: malformed tree entry: missing mode separator")
		}
		mode := string(body[:spaceIdx])
		rest := body[spaceIdx+1:]
		nulIdx := bytes.IndexByte(rest, 0)
		if nulIdx < 0 {
			return nil, fmt.Errorf("gitobj: malformed tree entry: missing name terminator")
		}
		name := string(rest[:nulIdx])
		rest = rest[nulIdx+1:]
		if len(rest) < 20 {
			return nil, fmt.Errorf("gitobj: malformed tree entry: truncated hash")
		}
		objType, err := modeToType(mode)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Name: name,
			Type: objType,
			Hash: hex.EncodeToString(rest[:20]),
		})
		body = rest[20:]
	}
	return entries, nil
}

// modeString returns t's tree-entry mode, or "-1" for an unknown type.
func modeString(t artifact.ObjectType) string {
	mode, err := modeFor(t)
	if err != nil {
		return strconv.Itoa(-1)
	}
	return mode
}
