package artifact

import (
	"encoding/json"
	"path"
	"strings"
)

// ReferenceType discriminates what a NamedTarget actually refers to.
type ReferenceType int

const (
	// ReferenceTarget is an ordinary build target.
	ReferenceTarget ReferenceType = iota
	// ReferenceFile is a source file reference.
	ReferenceFile
	// ReferenceTree is a whole-directory reference.
	ReferenceTree
	// ReferenceGlob is a glob-expression reference.
	ReferenceGlob
	// ReferenceSymlink is a symlink reference.
	ReferenceSymlink
)

// NormalModuleName lexically normalises a module name: leading/trailing
// slashes are stripped, "." and ".." are resolved against a virtual root,
// and a name that escapes the root collapses to "". Idempotent
// (spec.md §8's testable property).
//
// Grounded on
// original_source/.../base_maps/entity_name_data.hpp's
// NamedTarget::normal_module_name, which normalises "/" + module + "/"
// with std::filesystem::path::lexically_normal and reports the parent of
// the lexically-relative-to-root result; path.Clean on a rooted path is
// the Go equivalent of lexically_normal here.
func NormalModuleName(module string) string {
	cleaned := path.Clean("/" + module + "/")
	if cleaned == "/" {
		return ""
	}
	return strings.TrimPrefix(cleaned, "/")
}

// NamedTarget names a target, file, tree, glob, or symlink inside a
// repository and (normalised) module.
type NamedTarget struct {
	Repository string
	Module     string
	Name       string
	Reference  ReferenceType
}

// NewNamedTarget returns a NamedTarget with its module name normalised.
func NewNamedTarget(repository, module, name string, reference ReferenceType) NamedTarget {
	return NamedTarget{Repository: repository, Module: NormalModuleName(module), Name: name, Reference: reference}
}

// AnonymousTarget names a target synthesised from an in-memory rule map
// and target-node id, rather than looked up by location.
type AnonymousTarget struct {
	RuleMapID   string
	TargetNodeID string
}

// EntityName is a tagged union of NamedTarget and AnonymousTarget.
type EntityName struct {
	named      *NamedTarget
	anonymous  *AnonymousTarget
}

// NewNamedEntity wraps a NamedTarget as an EntityName.
func NewNamedEntity(t NamedTarget) EntityName { return EntityName{named: &t} }

// NewAnonymousEntity wraps an AnonymousTarget as an EntityName.
func NewAnonymousEntity(t AnonymousTarget) EntityName { return EntityName{anonymous: &t} }

// IsNamedTarget reports whether e wraps a NamedTarget.
func (e EntityName) IsNamedTarget() bool { return e.named != nil }

// IsAnonymousTarget reports whether e wraps an AnonymousTarget.
func (e EntityName) IsAnonymousTarget() bool { return e.anonymous != nil }

// AsNamedTarget returns (target, true) if e wraps a NamedTarget.
func (e EntityName) AsNamedTarget() (NamedTarget, bool) {
	if e.named == nil {
		return NamedTarget{}, false
	}
	return *e.named, true
}

// AsAnonymousTarget returns (target, true) if e wraps an AnonymousTarget.
func (e EntityName) AsAnonymousTarget() (AnonymousTarget, bool) {
	if e.anonymous == nil {
		return AnonymousTarget{}, false
	}
	return *e.anonymous, true
}

const (
	locationMarker          = "@"
	fileLocationMarker      = "FILE"
	treeLocationMarker      = "TREE"
	globMarker              = "GLOB"
	symlinkLocationMarker   = "SYMLINK"
	anonymousMarker         = "#"
)

// ToJSON renders e as the four/five-element array form used throughout
// the engine to key caches and logs: ["@", repository, [marker], module,
// name] for a NamedTarget (the reference-type marker is omitted for plain
// targets), or ["#", ruleMapID, targetNodeID] for an AnonymousTarget.
func (e EntityName) ToJSON() ([]byte, error) {
	var elems []interface{}
	if e.IsAnonymousTarget() {
		elems = []interface{}{anonymousMarker, e.anonymous.RuleMapID, e.anonymous.TargetNodeID}
	} else {
		elems = []interface{}{locationMarker, e.named.Repository}
		switch e.named.Reference {
		case ReferenceFile:
			elems = append(elems, fileLocationMarker)
		case ReferenceTree:
			elems = append(elems, treeLocationMarker)
		case ReferenceGlob:
			elems = append(elems, globMarker)
		case ReferenceSymlink:
			elems = append(elems, symlinkLocationMarker)
		case ReferenceTarget:
			// no marker for plain targets
		}
		elems = append(elems, e.named.Module, e.named.Name)
	}
	return json.Marshal(elems)
}

// String renders e's canonical JSON form.
func (e EntityName) String() string {
	data, err := e.ToJSON()
	if err != nil {
		return "<invalid entity name>"
	}
	return string(data)
}

// IsDefinitionName reports whether e names a target definition proper (as
// opposed to a file/tree/glob/symlink reference). Anonymous targets are
// always definition names.
func (e EntityName) IsDefinitionName() bool {
	if e.IsAnonymousTarget() {
		return true
	}
	return e.named.Reference == ReferenceTarget
}
