// Package artifact implements the content-addressed artifact and action
// model (C2 in SPEC_FULL.md): ArtifactDescription, ActionDescription,
// Tree, TreeOverlay, and EntityName.
//
// The canonical JSON serialiser in this file is the *only* producer of the
// bytes that get hashed into an identifier (§9 design note): every ID()
// method below routes through ToJSON/canonical encoding rather than hashing
// its own ad-hoc byte concatenation, except for ActionDescription's id,
// which the spec defines via a separate field-order hash (see action.go).
package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// Kind discriminates an ArtifactDescription's variant.
type Kind int

const (
	// KindLocal is a source file on disk.
	KindLocal Kind = iota
	// KindKnown is content already addressed by a Digest.
	KindKnown
	// KindAction is the output of another action.
	KindAction
	// KindTree is a materialised directory.
	KindTree
)

// Description is a tagged union over the four artifact variants described
// in spec.md §3. Two Descriptions are equal iff their ID()s are equal,
// which holds iff their canonical JSON forms are byte-equal.
type Description struct {
	kind Kind

	// Local
	localPath       string
	localRepository string

	// Known
	knownDigest     *digest.Digest
	knownObjectType ObjectType
	knownRepository string // optional; "" means unset

	// Action
	actionID   string
	actionPath string

	// Tree
	treeID string

	cachedID string
}

// NewLocal returns a Description naming a source file at path in
// repository.
func NewLocal(path, repository string) *Description {
	return &Description{kind: KindLocal, localPath: path, localRepository: repository}
}

// NewKnown returns a Description naming already-addressed content. repo is
// optional provenance and may be empty.
func NewKnown(d *digest.Digest, objectType ObjectType, repo string) *Description {
	return &Description{kind: KindKnown, knownDigest: d, knownObjectType: objectType, knownRepository: repo}
}

// NewAction returns a Description naming the output at outputPath of the
// action identified by actionID.
func NewAction(actionID, outputPath string) *Description {
	return &Description{kind: KindAction, actionID: actionID, actionPath: outputPath}
}

// NewTree returns a Description naming the materialised directory
// identified by treeID.
func NewTree(treeID string) *Description {
	return &Description{kind: KindTree, treeID: treeID}
}

// Kind returns the Description's variant.
func (d *Description) Kind() Kind { return d.kind }

// Local returns (path, repository, true) if Kind() == KindLocal.
func (d *Description) Local() (path, repository string, ok bool) {
	if d.kind != KindLocal {
		return "", "", false
	}
	return d.localPath, d.localRepository, true
}

// Known returns (digest, objectType, repository, true) if Kind() == KindKnown.
func (d *Description) Known() (dig *digest.Digest, objectType ObjectType, repository string, ok bool) {
	if d.kind != KindKnown {
		return nil, 0, "", false
	}
	return d.knownDigest, d.knownObjectType, d.knownRepository, true
}

// Action returns (actionID, outputPath, true) if Kind() == KindAction.
func (d *Description) Action() (actionID, outputPath string, ok bool) {
	if d.kind != KindAction {
		return "", "", false
	}
	return d.actionID, d.actionPath, true
}

// Tree returns (treeID, true) if Kind() == KindTree.
func (d *Description) Tree() (treeID string, ok bool) {
	if d.kind != KindTree {
		return "", false
	}
	return d.treeID, true
}

// wire mirrors the JSON shape in
// original_source/src/buildtool/common/artifact_description.cpp, where a
// KNOWN artifact's repository is bound to `_` and excluded from both
// ToJson and ComputeId (artifact_description.cpp:127-129): only LOCAL
// carries a repository field in its hashed form.
// {"type": "LOCAL"|"KNOWN"|"ACTION"|"TREE", "data": {...}}.
type wire struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type localData struct {
	Path       string `json:"path"`
	Repository string `json:"repository"`
}

type knownData struct {
	ID       string `json:"id"`
	Size     int64  `json:"size"`
	FileType string `json:"file_type"`
}

type actionData struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type treeData struct {
	ID string `json:"id"`
}

// ToJSON returns the canonical JSON encoding of d.
func (d *Description) ToJSON() ([]byte, error) {
	var data interface{}
	typeStr := ""
	switch d.kind {
	case KindLocal:
		typeStr = "LOCAL"
		data = localData{Path: d.localPath, Repository: d.localRepository}
	case KindKnown:
		typeStr = "KNOWN"
		c, err := d.knownObjectType.char()
		if err != nil {
			return nil, err
		}
		data = knownData{
			ID:       d.knownDigest.Hex(),
			Size:     d.knownDigest.Size(),
			FileType: string(c),
		}
	case KindAction:
		typeStr = "ACTION"
		data = actionData{ID: d.actionID, Path: d.actionPath}
	case KindTree:
		typeStr = "TREE"
		data = treeData{ID: d.treeID}
	default:
		return nil, fmt.Errorf("artifact: unknown description kind %d", d.kind)
	}
	rawData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire{Type: typeStr, Data: rawData})
}

// FromJSON parses a canonical artifact description. hashType selects the
// Digest hash space used to reconstruct a KNOWN artifact's digest.
func FromJSON(hashType digest.Type, data []byte) (*Description, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.Newf(errs.KindParse, "artifact: malformed description: %v", err)
	}
	switch w.Type {
	case "LOCAL":
		var ld localData
		if err := json.Unmarshal(w.Data, &ld); err != nil {
			return nil, errs.Newf(errs.KindParse, "artifact: malformed LOCAL data: %v", err)
		}
		return NewLocal(ld.Path, ld.Repository), nil
	case "KNOWN":
		var kd knownData
		if err := json.Unmarshal(w.Data, &kd); err != nil {
			return nil, errs.Newf(errs.KindParse, "artifact: malformed KNOWN data: %v", err)
		}
		if len(kd.FileType) != 1 {
			return nil, errs.New(errs.KindParse, "artifact: KNOWN file_type must be a single character")
		}
		objectType, err := objectTypeFromChar(kd.FileType[0])
		if err != nil {
			return nil, errs.Newf(errs.KindParse, "artifact: %v", err)
		}
		dig, err := digest.New(hashType, kd.ID, kd.Size, objectType.IsTree())
		if err != nil {
			return nil, errs.Newf(errs.KindParse, "artifact: invalid KNOWN digest: %v", err)
		}
		// repository is not part of the hashed form (see knownData); a
		// KNOWN artifact parsed back from JSON carries no provenance.
		return NewKnown(dig, objectType, ""), nil
	case "ACTION":
		var ad actionData
		if err := json.Unmarshal(w.Data, &ad); err != nil {
			return nil, errs.Newf(errs.KindParse, "artifact: malformed ACTION data: %v", err)
		}
		return NewAction(ad.ID, ad.Path), nil
	case "TREE":
		var td treeData
		if err := json.Unmarshal(w.Data, &td); err != nil {
			return nil, errs.Newf(errs.KindParse, "artifact: malformed TREE data: %v", err)
		}
		return NewTree(td.ID), nil
	default:
		return nil, errs.Newf(errs.KindParse, `artifact: type must be one of "LOCAL", "KNOWN", "ACTION", or "TREE", got %q`, w.Type)
	}
}

// ID returns d's cached canonical identifier: the compatible-hash digest of
// d's canonical JSON serialisation.
func (d *Description) ID() (string, error) {
	if d.cachedID != "" {
		return d.cachedID, nil
	}
	data, err := d.ToJSON()
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible(data)
	if err != nil {
		return "", err
	}
	d.cachedID = dig.Hex()
	return d.cachedID, nil
}

// Equal reports whether a and b have the same ID, i.e. the same canonical
// JSON form.
func Equal(a, b *Description) bool {
	idA, errA := a.ID()
	idB, errB := b.ID()
	if errA != nil || errB != nil {
		return false
	}
	return idA == idB
}
