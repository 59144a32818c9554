package execbridge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// Action is the decoded, locally-runnable form of an
// artifact.ActionDescription: its command, environment, working
// directory, and declared outputs, all already staged under a working
// directory by the caller.
type Action struct {
	Command     []string
	Cwd         string
	Env         map[string]string
	OutputFiles []string
	OutputDirs  []string
}

// RunResult is what a Runner reports after a command finishes: its exit
// code and captured stdout/stderr. Output classification (file vs.
// directory vs. symlink) happens afterwards in Execute, since it reads
// the resulting working directory rather than anything the Runner
// itself returns.
type RunResult struct {
	ExitCode int32
	Stdout   []byte
	Stderr   []byte
}

// Runner runs one Action rooted at workdir.
type Runner interface {
	Run(ctx context.Context, workdir string, action *Action) (*RunResult, error)
}

// execCmdAdaptor makes *exec.Cmd satisfy cmdCalls; *exec.Cmd has no Kill
// method of its own, only its Process once started.
type execCmdAdaptor struct{ cmd *exec.Cmd }

func (a *execCmdAdaptor) Start() error { return a.cmd.Start() }
func (a *execCmdAdaptor) Wait() error  { return a.cmd.Wait() }
func (a *execCmdAdaptor) Kill() error {
	if a.cmd.Process == nil {
		return nil
	}
	return a.cmd.Process.Kill()
}

// LocalRunner runs actions as local subprocesses; grounded on
// _examples/bufbuild-buf/private/pkg/command/process.go's exec.Cmd
// wiring, layered onto this package's process for the Start/Wait/Kill
// lifecycle.
type LocalRunner struct{}

// NewLocalRunner returns a LocalRunner.
func NewLocalRunner() *LocalRunner { return &LocalRunner{} }

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, workdir string, action *Action) (*RunResult, error) {
	if len(action.Command) == 0 {
		return nil, errs.New(errs.KindInvariant, "execbridge: action has no command")
	}
	dir := workdir
	if action.Cwd != "" {
		dir = filepath.Join(workdir, action.Cwd)
	}

	cmd := exec.CommandContext(ctx, action.Command[0], action.Command[1:]...) //nolint:gosec // action command is caller-controlled, not user input
	cmd.Dir = dir
	cmd.Env = flattenEnv(action.Env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p := newProcess(&execCmdAdaptor{cmd: cmd}, func() {})
	if err := p.Start(); err != nil {
		return nil, errs.Newf(errs.KindInternal, "execbridge: starting command: %v", err)
	}

	var exitCode int32
	if err := p.Wait(ctx); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = int32(exitErr.ExitCode())
		} else {
			return nil, err
		}
	}
	return &RunResult{ExitCode: exitCode, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// BlobWriter stores a content blob (e.g. stdout/stderr) into CAS,
// returning its digest. Implemented by private/pkg/cas.
type BlobWriter interface {
	WriteBlob(ctx context.Context, content []byte) (*digest.Digest, error)
}

// TreeBuilder materialises a real directory on disk into a
// content-addressed tree, returning its tree digest. Implemented by
// private/pkg/cas; crossing into per-entry blob hashing and tree
// encoding is that package's concern, not execbridge's.
type TreeBuilder interface {
	BuildTree(ctx context.Context, dirPath string) (*digest.Digest, error)
}

// collectFileOutput classifies workdir/path (a declared output file)
// and appends it to result as an OutputFile or OutputSymlink. Symlinks
// are detected via Lstat so a declared-file output that is actually a
// symlink is never silently dereferenced.
func collectFileOutput(ctx context.Context, workdir, path string, protocol ProtocolVersion, blobs BlobWriter, result *ActionResult) error {
	full := filepath.Join(workdir, path)
	info, err := os.Lstat(full)
	if err != nil {
		return errs.Newf(errs.KindNotFound, "execbridge: declared output file %q was not produced: %v", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return errs.Newf(errs.KindInternal, "execbridge: reading symlink %q: %v", path, err)
		}
		result.addSymlink(protocol, false, OutputSymlink{Path: path, Target: target})
		return nil
	}
	if info.IsDir() {
		return errs.Newf(errs.KindInvariant, "execbridge: declared output file %q is a directory", path)
	}
	content, err := os.ReadFile(full) //nolint:gosec // path is joined under a controlled action workdir
	if err != nil {
		return errs.Newf(errs.KindInternal, "execbridge: reading output file %q: %v", path, err)
	}
	kind := KindFile
	if info.Mode()&0o111 != 0 {
		kind = KindExecutable
	}
	var dig *digest.Digest
	if blobs != nil {
		dig, err = blobs.WriteBlob(ctx, content)
	} else {
		dig, err = digest.HashBlob(content)
	}
	if err != nil {
		return err
	}
	result.OutputFiles = append(result.OutputFiles, OutputFile{Path: path, ArtifactInfo: ArtifactInfo{Digest: dig, Type: kind}})
	return nil
}

// collectDirOutput classifies workdir/path (a declared output
// directory) and appends it to result as an OutputDirectory or
// OutputSymlink.
func collectDirOutput(ctx context.Context, workdir, path string, protocol ProtocolVersion, trees TreeBuilder, result *ActionResult) error {
	full := filepath.Join(workdir, path)
	info, err := os.Lstat(full)
	if err != nil {
		return errs.Newf(errs.KindNotFound, "execbridge: declared output directory %q was not produced: %v", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return errs.Newf(errs.KindInternal, "execbridge: reading symlink %q: %v", path, err)
		}
		result.addSymlink(protocol, true, OutputSymlink{Path: path, Target: target})
		return nil
	}
	if !info.IsDir() {
		return errs.Newf(errs.KindInvariant, "execbridge: declared output directory %q is not a directory", path)
	}
	if trees == nil {
		return errs.Newf(errs.KindInternal, "execbridge: no TreeBuilder configured to materialise output directory %q", path)
	}
	dig, err := trees.BuildTree(ctx, full)
	if err != nil {
		return err
	}
	result.OutputDirectories = append(result.OutputDirectories, OutputDirectory{Path: path, ArtifactInfo: ArtifactInfo{Digest: dig, Type: KindTree}})
	return nil
}
