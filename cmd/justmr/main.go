// Command justmr is the entrypoint for spec.md §6's CLI: it resolves a
// multi-repository configuration and either prints it (setup/setup-env),
// fetches archives (fetch), rewrites pinned commits (update), or execs
// the downstream build tool with the resolved configuration (do).
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrcli"
	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrconfig"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/cas"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	buildRoot, err := defaultBuildRoot()
	if err != nil {
		logger.Fatal("justmr: determining build root", zap.Error(err))
	}
	store, err := cas.NewStore(buildRoot, digest.TypeNative, cas.WithLogger(logger))
	if err != nil {
		logger.Fatal("justmr: opening local CAS", zap.Error(err))
	}

	deps := &justmrcli.Deps{
		Logger:   logger,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Resolver: &justmrconfig.LocalFileResolver{Trees: store},
	}

	code := justmrcli.Execute(context.Background(), deps, os.Args[1:])
	os.Exit(int(code))
}

func defaultBuildRoot() (string, error) {
	if root := os.Getenv("JUSTMR_BUILD_ROOT"); root != "" {
		return ensureExists(root)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return ensureExists(home + "/.cache/justmr")
}

func ensureExists(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
