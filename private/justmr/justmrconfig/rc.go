package justmrconfig

import (
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
	"gopkg.in/yaml.v3"
)

// RCFile is the "just-mr rc" layer original_source's rc.cpp merges ahead
// of the repository configuration proper (SPEC_FULL.md supplemented
// feature): a home-level rc, a repository-level rc, and explicit CLI
// overrides. Distfile mirror selection itself stays an external
// collaborator (spec.md §1); this only merges the parts that feed the
// resolver — the default config file location and extra distdirs to
// search before fetching.
type RCFile struct {
	DefaultConfigFile string            `yaml:"default config,omitempty" json:"default_config,omitempty"`
	Distdirs          []string          `yaml:"distdirs,omitempty" json:"distdirs,omitempty"`
	RemoteExecution   string            `yaml:"remote execution,omitempty" json:"remote_execution,omitempty"`
	Overrides         map[string]string `yaml:"-" json:"-"` // CLI --override flags, never persisted
}

// ParseRC parses a YAML-format rc file (original's own on-disk format).
func ParseRC(data []byte) (*RCFile, error) {
	var rc RCFile
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, errs.Newf(errs.KindConfig, "justmrconfig: malformed rc file: %v", err)
	}
	return &rc, nil
}

// MergeRC layers home, repo, and cliOverrides in that precedence order
// (later arguments win), per original_source/src/other_tools/just_mr/rc.cpp's
// merge order: home-level rc < repository-level rc < explicit CLI flags.
func MergeRC(home, repo *RCFile, cliOverrides map[string]string) *RCFile {
	merged := &RCFile{Overrides: make(map[string]string)}
	for _, rc := range []*RCFile{home, repo} {
		if rc == nil {
			continue
		}
		if rc.DefaultConfigFile != "" {
			merged.DefaultConfigFile = rc.DefaultConfigFile
		}
		if rc.RemoteExecution != "" {
			merged.RemoteExecution = rc.RemoteExecution
		}
		merged.Distdirs = append(merged.Distdirs, rc.Distdirs...)
		for k, v := range rc.Overrides {
			merged.Overrides[k] = v
		}
	}
	for k, v := range cliOverrides {
		merged.Overrides[k] = v
	}
	return merged
}
