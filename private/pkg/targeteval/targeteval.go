// Package targeteval implements the target evaluator (C7 in
// SPEC_FULL.md): it turns NamedTarget descriptions into analysed
// artifact/action sets by instantiating rules against an asyncmap
// (C3)-backed analysis cache.
//
// The rule *body* language (expression evaluation over target fields) is
// explicitly out of scope (spec.md §1 Non-goals: "a language runtime for
// build rules beyond the evaluator already present in the source"); a
// Rule here is a plain Go func registered in a RuleRegistry, standing in
// for that already-present evaluator.
//
// Grounded on _examples/bufbuild-buf/internal/buf/bufbuild/builder.go and
// handler.go (the "read file set, resolve dependencies, instantiate,
// cache by key" pipeline shape) and
// original_source/src/buildtool/build_engine/target_map/absent_target_map.cpp
// (source-file fast path, export-target caching).
package targeteval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/asyncmap"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/normalpath"
)

// GraphInfo carries the dependency edges the graph viewer (an external
// collaborator per spec.md §1) would render for a target.
type GraphInfo struct {
	Dependencies []artifact.NamedTarget
}

// Analysis is the result of analysing one target (spec.md §4.7 step 3):
// the actions it introduces, its staged output artifacts, its runfiles,
// an opaque "provides" expression tree, tainted labels, and graph info.
type Analysis struct {
	Actions       []*artifact.ActionDescription
	ArtifactStage map[string]*artifact.Description
	Runfiles      map[string]*artifact.Description
	Provides      json.RawMessage
	Tainted       []string
	GraphInfo     GraphInfo
}

// TargetDescription is one target's parsed entry from a target file: its
// rule name (the JSON "type" field) and its remaining fields, passed to
// the rule uninterpreted.
type TargetDescription struct {
	RuleName string
	Fields   map[string]json.RawMessage
}

// ParseTargetFile parses a target file: a JSON object mapping target
// name to a description object whose "type" field names the rule
// (spec.md §4.7 step 2/3).
func ParseTargetFile(data []byte) (map[string]TargetDescription, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Newf(errs.KindParse, "targeteval: malformed target file: %v", err)
	}
	out := make(map[string]TargetDescription, len(raw))
	for name, fields := range raw {
		typeRaw, ok := fields["type"]
		if !ok {
			return nil, errs.Newf(errs.KindParse, "targeteval: target %q has no \"type\"", name)
		}
		var ruleName string
		if err := json.Unmarshal(typeRaw, &ruleName); err != nil {
			return nil, errs.Newf(errs.KindParse, "targeteval: target %q has a non-string \"type\": %v", name, err)
		}
		rest := make(map[string]json.RawMessage, len(fields))
		for k, v := range fields {
			if k == "type" {
				continue
			}
			rest[k] = v
		}
		out[name] = TargetDescription{RuleName: ruleName, Fields: rest}
	}
	return out, nil
}

// RootReader reads a repository+module's target file. Implementations
// back this with a storage.ReadBucket over a materialised workspace root
// (the common case) or a serve-endpoint client when the root is absent
// (spec.md §4.7 step 2); see BucketRootReader and ServeFallbackReader.
type RootReader interface {
	ReadTargetFile(ctx context.Context, repo, module string) (map[string]TargetDescription, error)
}

// DepRequest names one dependency analysis a rule needs, with its own
// (possibly narrowed) effective configuration.
type DepRequest struct {
	Name   artifact.NamedTarget
	Config map[string]string
}

// RuleContext is passed to a RuleFunc: the target being analysed, its
// effective configuration and fields, and a Deps callback that recurses
// into the evaluator for this target's dependencies via the async map's
// Subcaller, so fan-out and cycle detection are inherited from C3.
type RuleContext struct {
	Target artifact.NamedTarget
	Config map[string]string
	Fields map[string]json.RawMessage

	// Deps resolves the listed dependencies. If any fails fatally, the
	// returned error is non-nil and the analysis that called Deps is
	// already poisoned: the rule should return promptly without calling
	// setter-adjacent work. Deps preserves request order in its result.
	Deps func(deps []DepRequest) ([]*Analysis, error)
}

// RuleFunc instantiates one rule's body against rc and returns the
// resulting Analysis.
type RuleFunc func(rc *RuleContext) (*Analysis, error)

// RuleRegistry maps a rule name (the target file's "type" field) to its
// RuleFunc.
type RuleRegistry map[string]RuleFunc

// Evaluator is the asyncmap-wired analysis cache (spec.md §4.7).
type Evaluator struct {
	reader RootReader
	rules  RuleRegistry
	m      *asyncmap.Map[string, *Analysis]
}

// New returns an Evaluator reading target files via reader and
// instantiating rules from rules, running at most workers analyses
// concurrently.
func New(reader RootReader, rules RuleRegistry, workers int) *Evaluator {
	e := &Evaluator{reader: reader, rules: rules}
	e.m = asyncmap.New(workers, e.produce)
	return e
}

type analysisKey struct {
	Name   artifact.NamedTarget
	Config map[string]string
}

func encodeKey(name artifact.NamedTarget, config map[string]string) (string, error) {
	data, err := json.Marshal(analysisKey{Name: name, Config: config})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Analyze resolves (and, on first demand, produces) the Analysis for
// name under config.
func (e *Evaluator) Analyze(name artifact.NamedTarget, config map[string]string) (*Analysis, error) {
	key, err := encodeKey(name, config)
	if err != nil {
		return nil, err
	}
	return e.m.Get(key, nil)
}

func (e *Evaluator) produce(setter func(*Analysis), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, *Analysis], key string) {
	var k analysisKey
	if err := json.Unmarshal([]byte(key), &k); err != nil {
		logger(err.Error(), true)
		return
	}
	name := k.Name

	if name.Reference == artifact.ReferenceFile {
		e.analyzeSourceFile(name, setter)
		return
	}

	targets, err := e.reader.ReadTargetFile(context.Background(), name.Repository, name.Module)
	if err != nil {
		logger(err.Error(), true)
		return
	}
	td, ok := targets[name.Name]
	if !ok {
		logger(fmt.Sprintf("targeteval: no target %q in %s module %q", name.Name, name.Repository, name.Module), true)
		return
	}
	rule, ok := e.rules[td.RuleName]
	if !ok {
		logger(fmt.Sprintf("targeteval: unknown rule %q for target %q", td.RuleName, name.Name), true)
		return
	}

	rc := &RuleContext{
		Target: name,
		Config: k.Config,
		Fields: td.Fields,
		Deps:   e.depsFunc(sc, logger),
	}
	analysis, err := rule(rc)
	if err != nil {
		logger(err.Error(), true)
		return
	}
	setter(analysis)
}

// analyzeSourceFile implements spec.md §4.7 step 5: a zero-action target
// whose artifact is a Local artifact pointing at the referenced file.
func (e *Evaluator) analyzeSourceFile(name artifact.NamedTarget, setter func(*Analysis)) {
	path := name.Name
	if name.Module != "" {
		path = normalpath.Join(name.Module, name.Name)
	}
	setter(&Analysis{
		ArtifactStage: map[string]*artifact.Description{
			name.Name: artifact.NewLocal(path, name.Repository),
		},
	})
}

func (e *Evaluator) depsFunc(sc *asyncmap.Subcaller[string, *Analysis], parentLogger asyncmap.Logger) func([]DepRequest) ([]*Analysis, error) {
	return func(deps []DepRequest) ([]*Analysis, error) {
		keys := make([]string, len(deps))
		for i, d := range deps {
			key, err := encodeKey(d.Name, d.Config)
			if err != nil {
				return nil, err
			}
			keys[i] = key
		}
		var (
			result []*Analysis
			depErr error
		)
		sc.Call(keys, func(vs []*Analysis) {
			result = vs
		}, func(msg string, fatal bool) {
			if fatal {
				depErr = fmt.Errorf("targeteval: dependency failed: %s", msg)
			}
			parentLogger(msg, fatal)
		})
		return result, depErr
	}
}

// TargetCacheKey is the export-target cache key (spec.md §4.7 step 6):
// repoKey (C5's RepositoryKey) + target name + the effective
// configuration's hash, so identically-configured exports of the same
// target in the same repository graph share one cached result whether it
// comes from the local target cache or a serve endpoint.
func TargetCacheKey(repoKey, targetName, configHash string) string {
	return repoKey + "#" + targetName + "#" + configHash
}

// ConfigHash returns the stable digest of an effective configuration map,
// used as TargetCacheKey's third component.
func ConfigHash(config map[string]string) (string, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible(data)
	if err != nil {
		return "", err
	}
	return dig.Hex(), nil
}
