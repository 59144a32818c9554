package gitobj

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// FetchViaTmpRepo fetches branch from url into a scratch bare repository
// under tmpPath, then fetches the resulting commit into this GitRepo's
// ODB (real mode only). Grounded on
// _examples/bufbuild-buf/internal/pkg/git/cloner.go's CloneToBucket:
// SSH urls are fetched by shelling out to the git binary directly (safer
// than going through any bundled transport implementation); other
// schemes use the same shell-out path here, since the corpus carries no
// libgit2/cgo binding the original substitutes for them.
func (r *GitRepo) FetchViaTmpRepo(ctx context.Context, tmpPath, url, branch string, env map[string]string, gitBin string, logger *zap.Logger) (commitHex string, retErr error) {
	if r.mode != ModeReal {
		return "", fmt.Errorf("gitobj: fetch_via_tmp_repo requires a real-mode GitRepo")
	}
	real, ok := r.odb.(*realODB)
	if !ok {
		return "", fmt.Errorf("gitobj: fetch_via_tmp_repo requires a GitRepo backed by a real ODB")
	}
	if gitBin == "" {
		gitBin = "git"
	}
	if branch == "" {
		return "", fmt.Errorf("gitobj: must set branch or tag to fetch")
	}

	if err := os.MkdirAll(tmpPath, 0o755); err != nil {
		return "", err
	}
	initCmd := exec.CommandContext(ctx, gitBin, "init", "--bare", tmpPath)
	if out, err := initCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("gitobj: git init --bare: %w: %s", err, out)
	}
	defer func() {
		retErr = multierr.Append(retErr, os.RemoveAll(tmpPath))
	}()

	args := []string{"--git-dir", tmpPath, "fetch", "--depth", "1", url, branch}
	fetchCmd := exec.CommandContext(ctx, gitBin, args...)
	fetchCmd.Env = envSlice(env)
	var stderr bytes.Buffer
	fetchCmd.Stderr = &stderr
	if err := fetchCmd.Run(); err != nil {
		if logger != nil {
			logger.Debug("git_fetch_via_tmp_repo_failed", zap.String("url", url), zap.Error(err))
		}
		return "", fmt.Errorf("gitobj: git fetch %s %s: %w: %s", url, branch, err, stderr.String())
	}

	revParseCmd := exec.CommandContext(ctx, gitBin, "--git-dir", tmpPath, "rev-parse", "FETCH_HEAD")
	var stdout bytes.Buffer
	revParseCmd.Stdout = &stdout
	if err := revParseCmd.Run(); err != nil {
		return "", fmt.Errorf("gitobj: git rev-parse FETCH_HEAD: %w", err)
	}
	commitHex = strings.TrimSpace(stdout.String())

	bundleCmd := exec.CommandContext(ctx, gitBin, "--git-dir", tmpPath, "bundle", "create", "-", commitHex)
	var bundle bytes.Buffer
	bundleCmd.Stdout = &bundle
	if err := bundleCmd.Run(); err != nil {
		return "", fmt.Errorf("gitobj: git bundle create: %w", err)
	}
	if _, err := real.run(ctx, bundle.Bytes(), "bundle", "unbundle", "/dev/stdin"); err != nil {
		return "", err
	}

	return commitHex, nil
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return os.Environ()
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
