package justmrconfig

import (
	"context"
	"fmt"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
)

// TreeBuilder materialises a real directory into a content-addressed
// tree, returning its native tree digest. Implemented by private/pkg/cas.
type TreeBuilder interface {
	BuildTree(ctx context.Context, dirPath string) (*digest.Digest, error)
}

// LocalFileResolver is the only RootResolver variant this module
// resolves without an external collaborator: a "file" repository whose
// root is a plain directory on disk. Every other repository type (git
// clone, archive/zip fetch+extract, distdir merge, git-tree subtree
// lookup) needs a network fetch or an already-populated Git ODB that
// §1 explicitly externalises; LocalFileResolver reports those as
// unresolved rather than guessing.
type LocalFileResolver struct {
	Trees TreeBuilder
}

// ResolveWorkspaceRoot implements RootResolver.
func (r *LocalFileResolver) ResolveWorkspaceRoot(repoName string, spec *RepositorySpec) (string, error) {
	if spec.Type != RepoTypeFile {
		return "", fmt.Errorf("justmrconfig: repository %q is of type %q, which requires an external fetch/clone collaborator not wired into this build", repoName, spec.Type)
	}
	dig, err := r.Trees.BuildTree(context.Background(), spec.Path)
	if err != nil {
		return "", err
	}
	return dig.String(), nil
}
