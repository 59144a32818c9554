package artifact

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// Action is a named command with inputs, outputs, environment, and caching
// flags (spec.md §4.2). Its ID is fixed at construction time by the
// creator via CanonicalActionHash, matching the original's
// "constructed with explicit id" contract: two Actions built from the same
// fields always carry the same ID, but Action itself never recomputes it
// lazily.
type Action struct {
	id                  string
	command             []string
	env                 map[string]string
	mayFail             string // "" means may not fail
	noCache             bool
	timeoutScale        float64
	executionProperties map[string]string
	// isTreeAction marks a zero-input action synthesised from a Tree or
	// TreeOverlay, whose id is the tree's id rather than an independently
	// computed CanonicalActionHash.
	isTreeAction bool
}

// IsTreeAction reports whether a is a zero-input tree/tree-overlay action.
func (a *Action) IsTreeAction() bool { return a.isTreeAction }

// ActionDescription describes a complete action: its outputs and its Action.
type ActionDescription struct {
	OutputFiles []string
	OutputDirs  []string
	Act         Action
	Inputs      map[string]string // path -> input artifact ID
}

// plainHash is the teacher's "PlainHashData": a bare SHA-256 digest of s,
// with no Git-style object-header tagging.
func plainHash(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// hashVector mirrors the original's hash_vector: a fresh hasher fed the
// plain hash of every element in order, then finalised.
func hashVector(vec []string) []byte {
	h := sha256.New()
	for _, s := range vec {
		digest := plainHash(s)
		_, _ = h.Write(digest)
	}
	return h.Sum(nil)
}

// hashSortedStringMap hashes the canonical (key-sorted) JSON serialisation
// of m — the Go analogue of the original's Expression::ToHash() for a map
// of strings, since encoding/json always emits map keys in sorted order.
func hashSortedStringMap(m map[string]string) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return plainHash(string(data)), nil
}

// formatTimeoutScale renders f the way the canonical hash requires: a
// locale-independent hexadecimal float. Go's strconv hex-float form
// ('x' verb) is the idiomatic equivalent of C's "%+24a" here — this is a
// from-scratch engine, not a byte-for-byte reimplementation of the
// original's on-disk action-cache format, so internal run-to-run and
// cross-platform stability (spec's testable requirement) is what matters,
// not interop with the original's files.
func formatTimeoutScale(f float64) string {
	return strconv.FormatFloat(f, 'x', -1, 64)
}

// CanonicalActionHash computes the canonical action identifier: the
// hex-encoded SHA-256 over the fixed field order from spec.md §4.2.
// inputs maps input path to the ID of the artifact bound there.
func CanonicalActionHash(
	outputFiles, outputDirs, command []string,
	env map[string]string,
	mayFail string,
	noCache bool,
	timeoutScale float64,
	executionProperties map[string]string,
	inputs map[string]string,
) (string, error) {
	h := sha256.New()

	h.Write(hashVector(sortedCopy(outputFiles)))
	h.Write(hashVector(sortedCopy(outputDirs)))
	h.Write(hashVector(command))

	envHash, err := hashSortedStringMap(env)
	if err != nil {
		return "", err
	}
	h.Write(envHash)

	var mayFailVec []string
	if mayFail != "" {
		mayFailVec = []string{mayFail}
	}
	h.Write(hashVector(mayFailVec))

	if noCache {
		h.Write([]byte("N"))
	} else {
		h.Write([]byte("Y"))
	}

	h.Write([]byte(formatTimeoutScale(timeoutScale)))

	propsHash, err := hashSortedStringMap(executionProperties)
	if err != nil {
		return "", err
	}
	h.Write(propsHash)

	inputsHash, err := hashSortedStringMap(inputs)
	if err != nil {
		return "", err
	}
	h.Write(inputsHash)

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// sortedCopy returns a sorted copy of vec; output_files/output_dirs are
// sets in the model but the hash is order-sensitive, so callers that build
// the set from an unordered source must normalise before hashing.
func sortedCopy(vec []string) []string {
	out := make([]string, len(vec))
	copy(out, vec)
	sort.Strings(out)
	return out
}

// NewActionDescription validates and returns an ActionDescription,
// computing its Action's id via CanonicalActionHash.
func NewActionDescription(
	outputFiles, outputDirs, command []string,
	env map[string]string,
	mayFail string,
	noCache bool,
	timeoutScale float64,
	executionProperties map[string]string,
	inputs map[string]string,
) (*ActionDescription, error) {
	if len(command) == 0 {
		return nil, errs.New(errs.KindInvariant, "action: command must be non-empty")
	}
	if len(outputFiles) == 0 && len(outputDirs) == 0 {
		return nil, errs.New(errs.KindInvariant, "action: outputs and output-dirs must not both be empty")
	}
	if err := checkDisjoint(outputFiles, outputDirs); err != nil {
		return nil, err
	}
	id, err := CanonicalActionHash(outputFiles, outputDirs, command, env, mayFail, noCache, timeoutScale, executionProperties, inputs)
	if err != nil {
		return nil, err
	}
	return &ActionDescription{
		OutputFiles: append([]string(nil), outputFiles...),
		OutputDirs:  append([]string(nil), outputDirs...),
		Act: Action{
			id:                  id,
			command:             append([]string(nil), command...),
			env:                 copyStringMap(env),
			mayFail:             mayFail,
			noCache:             noCache,
			timeoutScale:        timeoutScale,
			executionProperties: copyStringMap(executionProperties),
		},
		Inputs: copyStringMap(inputs),
	}, nil
}

func checkDisjoint(a, b []string) error {
	seen := make(map[string]struct{}, len(a))
	for _, p := range a {
		seen[p] = struct{}{}
	}
	for _, p := range b {
		if _, ok := seen[p]; ok {
			return errs.Newf(errs.KindInvariant, "action: %q appears in both output_files and output_dirs", p)
		}
	}
	return nil
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ID returns the action's canonical identifier.
func (a *Action) ID() string { return a.id }

// Command returns the action's argv.
func (a *Action) Command() []string { return a.command }

// Env returns the action's environment.
func (a *Action) Env() map[string]string { return a.env }

// MayFail returns the may_fail message, or "" if the action must succeed.
func (a *Action) MayFail() (string, bool) { return a.mayFail, a.mayFail != "" }

// NoCache reports whether the action's results must never be cached.
func (a *Action) NoCache() bool { return a.noCache }

// TimeoutScale returns the action's timeout scaling factor.
func (a *Action) TimeoutScale() float64 { return a.timeoutScale }

// ExecutionProperties returns the action's platform property requirements.
func (a *Action) ExecutionProperties() map[string]string { return a.executionProperties }

// String renders the action's command for diagnostics.
func (a *Action) String() string { return strings.Join(a.command, " ") }
