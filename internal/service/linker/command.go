package linker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/pkgjson"
	"github.com/oshokin/node-bin-gen/internal/platform"
)

const (
	// Placeholder is written to bin/node on Windows, where the real binary is bin/node.exe.
	Placeholder = "This file intentionally left blank"

	binDirMode  os.FileMode = 0o755
	binFileMode os.FileMode = 0o644
)

// Options contains inputs for the linker entry point.
type Options struct {
	// Scope is the optional npm scope, with or without the leading "@".
	Scope string
	// PackageName is the metapackage name; "node" when empty.
	PackageName string
	// Version is the platform package version to install.
	Version string
	// PackageManager is "npm", "pnpm" or "yarn"; detected when empty.
	PackageManager string
	// Dir is the metapackage directory; the working directory when empty.
	Dir string
}

// commandFunc runs a package manager and returns its exit code.
// err is set only when the process could not be run at all.
type commandFunc func(ctx context.Context, dir string, env []string, name string, args ...string) (int, error)

// linker installs the platform package and links its binary into the metapackage.
// Callers go through Run, which validates the options first.
type linker struct {
	// opts are the caller's inputs.
	opts *Options
	// host is the machine the binary must run on.
	host platform.Host
	// dir is the metapackage directory.
	dir string
	// packageManager is the tool used to install the platform package.
	packageManager string
	// execute starts the package manager.
	execute commandFunc
	// environ returns the parent environment the subprocess inherits.
	environ func() []string
}

var (
	// errVersionRequired is returned when no version is provided.
	errVersionRequired = errors.New("version must be provided")
	// ErrPlatformPackageNotFound is returned when the installed platform package cannot be located.
	ErrPlatformPackageNotFound = errors.New("platform package not found")
)

// Run installs the platform package and links its binary.
// The returned code is the package manager's exit code; err reports linking failures.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "node-bin-setup")

	l, err := newLinker(opts)
	if err != nil {
		return 1, fmt.Errorf("initialize linker: %w", err)
	}

	return l.Run(ctx)
}

func newLinker(opts *Options) (*linker, error) {
	if opts.Version == "" {
		return nil, errVersionRequired
	}

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}

		dir = wd
	}

	packageManager := opts.PackageManager
	if packageManager == "" {
		packageManager = DetectPackageManager(os.Getenv, findProcess)
	}

	return &linker{
		opts:           opts,
		host:           platform.DetectHost(),
		dir:            dir,
		packageManager: packageManager,
		execute:        execute,
		environ:        os.Environ,
	}, nil
}

// Run performs the install and link steps.
func (l *linker) Run(ctx context.Context) (int, error) {
	name := l.PackageName()
	spec := name + "@" + l.opts.Version
	command := l.command()

	logger.InfoKV(ctx, "Installing platform package",
		"package", spec,
		"package_manager", command,
		"dir", l.dir)

	code, err := l.execute(ctx, l.dir, Environment(l.environ()), command, "add", "--no-save", spec)
	if err != nil {
		return 1, fmt.Errorf("run %s: %w", command, err)
	}

	if code != 0 {
		logger.WarnKV(ctx, "Package manager exited with a non-zero code", "code", code)
	}

	if err = l.link(ctx, name); err != nil {
		return code, err
	}

	return code, nil
}

// PackageName is "[@scope/]<name>-<platform>-<arch>" for the host.
func (l *linker) PackageName() string {
	name := l.opts.PackageName
	if name == "" {
		name = "node"
	}

	var scope string
	if l.opts.Scope != "" {
		scope = "@" + strings.TrimPrefix(l.opts.Scope, "@") + "/"
	}

	return scope + name + "-" + l.host.Platform + "-" + l.host.Arch
}

func (l *linker) command() string {
	if l.host.IsWindows() {
		return l.packageManager + ".cmd"
	}

	return l.packageManager
}

// link hard-links the platform binary into <dir>/bin.
func (l *linker) link(ctx context.Context, name string) error {
	manifestPath, err := ResolvePackage(l.dir, name)
	if err != nil {
		return err
	}

	executable, err := pkgjson.ReadNodeBin(manifestPath)
	if err != nil {
		return err
	}

	src := filepath.Join(filepath.Dir(manifestPath), filepath.FromSlash(executable))
	dest := filepath.Join(l.dir, filepath.FromSlash(executable))

	if err = os.Mkdir(filepath.Join(l.dir, "bin"), binDirMode); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create bin directory: %w", err)
	}

	if err = os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", dest, err)
	}

	if err = os.Link(src, dest); err != nil {
		return fmt.Errorf("link node binary: %w", err)
	}

	logger.InfoKV(ctx, "Linked node binary", "src", src, "dest", dest)

	if !l.host.IsWindows() {
		return nil
	}

	placeholder := filepath.Join(l.dir, "bin", "node")
	if err = os.WriteFile(placeholder, []byte(Placeholder), binFileMode); err != nil {
		return fmt.Errorf("write %s: %w", placeholder, err)
	}

	return pkgjson.RewriteConsumerBinEntry(filepath.Join(l.dir, pkgjson.Filename), platform.Executable(platform.Windows))
}

// ResolvePackage finds node_modules/<name>/package.json in dir or one of its ancestors.
func ResolvePackage(dir, name string) (string, error) {
	for current := dir; ; {
		candidate := filepath.Join(current, "node_modules", filepath.FromSlash(name), pkgjson.Filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w: %s from %s", ErrPlatformPackageNotFound, name, dir)
		}

		current = parent
	}
}

// Environment copies env with npm_config_global forced to false,
// so the platform package lands next to the metapackage.
func Environment(env []string) []string {
	out := make([]string, 0, len(env)+1)

	for _, kv := range env {
		if key, _, _ := strings.Cut(kv, "="); strings.EqualFold(key, "npm_config_global") {
			continue
		}

		out = append(out, kv)
	}

	return append(out, "npm_config_global=false")
}

func execute(ctx context.Context, dir string, env []string, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	if err != nil {
		return 1, err
	}

	return 0, nil
}
