// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/metadata"
)

// defaultBuildBackend is pip's own fallback for a project with a
// pyproject.toml lacking a [build-system] table, or none at all but a
// setup.py present.
const defaultBuildBackend = "setuptools.build_meta:__legacy__"

var defaultBuildRequires = []string{"setuptools>=40.8.0", "wheel"}

// SubprocessContext is the default Context: it materializes the source
// tree to disk, provisions an ephemeral venv with the backend's declared
// build requirements, and drives the backend via `python3 -m build`,
// following the command shape of the teacher's PureWheelBuild.GenerateFor
// (venv creation, `pip install` of requirements, then the build
// invocation) but executed locally rather than emitted as instructions.
type SubprocessContext struct {
	// WorkDir is the scratch root ephemeral venvs and source copies are
	// created under. Defaults to os.TempDir() if empty.
	WorkDir string
	// Python is the interpreter used to create venvs. Defaults to "python3".
	Python string
}

var _ Context = &SubprocessContext{}

type pyprojectBuildSystem struct {
	BuildSystem struct {
		Requires     []string `toml:"requires"`
		BuildBackend string   `toml:"build-backend"`
	} `toml:"build-system"`
}

func (c *SubprocessContext) python() string {
	if c.Python != "" {
		return c.Python
	}
	return "python3"
}

// SetupBuild materializes source into a scratch directory, resolves the
// project's build backend, and provisions a venv with its declared build
// requirements.
func (c *SubprocessContext) SetupBuild(ctx context.Context, source fs.FS, subdir, distName string) (SourceBuild, error) {
	root, err := os.MkdirTemp(c.WorkDir, "pep-build-src-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating build scratch directory")
	}
	if err := copyFSToDir(source, root); err != nil {
		os.RemoveAll(root)
		return nil, errors.Wrap(err, "materializing source tree")
	}
	dir := root
	if subdir != "" {
		dir = filepath.Join(root, subdir)
	}
	requires, backend, err := resolveBuildSystem(dir)
	if err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	venvDir, err := os.MkdirTemp(c.WorkDir, "pep-build-venv-*")
	if err != nil {
		os.RemoveAll(root)
		return nil, errors.Wrap(err, "creating build venv directory")
	}
	sb := &subprocessBuild{root: root, dir: dir, venvDir: venvDir, distName: distName, backend: backend}
	if out, err := exec.CommandContext(ctx, c.python(), "-m", "venv", venvDir).CombinedOutput(); err != nil {
		sb.cleanup()
		return nil, &BackendError{Err: errors.Wrap(err, "creating build venv"), Stderr: string(out)}
	}
	install := append([]string{"install", "build"}, requires...)
	if out, err := exec.CommandContext(ctx, sb.venvPython(), "-m", "pip", install...).CombinedOutput(); err != nil {
		sb.cleanup()
		return nil, &BackendError{Err: errors.Wrap(err, "installing build requirements"), Stderr: string(out)}
	}
	return sb, nil
}

// resolveBuildSystem reads pyproject.toml's [build-system] table, falling
// back to setuptools' legacy backend when the table (or the file itself)
// is absent but a setup.py exists, per spec.md's build-frontend contract.
func resolveBuildSystem(dir string) (requires []string, backend string, err error) {
	raw, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	switch {
	case err == nil:
		var doc pyprojectBuildSystem
		if err := toml.Unmarshal(raw, &doc); err != nil {
			return nil, "", errors.Wrap(err, "parsing pyproject.toml")
		}
		if doc.BuildSystem.BuildBackend == "" {
			return defaultBuildRequires, defaultBuildBackend, nil
		}
		requires := doc.BuildSystem.Requires
		if len(requires) == 0 {
			requires = defaultBuildRequires
		}
		return requires, doc.BuildSystem.BuildBackend, nil
	case os.IsNotExist(err):
		if _, statErr := os.Stat(filepath.Join(dir, "setup.py")); statErr == nil {
			return defaultBuildRequires, defaultBuildBackend, nil
		}
		return nil, "", &ErrMissingEntrypoint{Dir: dir}
	default:
		return nil, "", errors.Wrap(err, "reading pyproject.toml")
	}
}

// subprocessBuild is one configured build invocation.
type subprocessBuild struct {
	root, dir, venvDir, distName, backend string
}

var _ SourceBuild = &subprocessBuild{}

func (b *subprocessBuild) venvPython() string {
	if isWindowsVenv(b.venvDir) {
		return filepath.Join(b.venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(b.venvDir, "bin", "python3")
}

func isWindowsVenv(venvDir string) bool {
	_, err := os.Stat(filepath.Join(venvDir, "Scripts"))
	return err == nil
}

func (b *subprocessBuild) cleanup() {
	os.RemoveAll(b.root)
	os.RemoveAll(b.venvDir)
}

// Wheel runs `python -m build --wheel` against the configured source
// directory, matching the teacher's
// "/deps/bin/python3 -m build --wheel -n {{.Location.Dir}}" invocation.
func (b *subprocessBuild) Wheel(ctx context.Context, outDir string) (string, error) {
	cmd := exec.CommandContext(ctx, b.venvPython(), "-m", "build", "--wheel", "--no-isolation", "-o", outDir, b.dir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &BackendError{Err: errors.Wrap(err, "building wheel"), Stderr: stderr.String()}
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", errors.Wrap(err, "reading build output directory")
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".whl") {
			return e.Name(), nil
		}
	}
	return "", errors.Errorf("build produced no wheel in %q", outDir)
}

// Metadata invokes the backend's prepare_metadata_for_build_wheel hook
// directly, so the resolver can learn Core Metadata without paying for a
// full build. Backends that don't implement the hook report ok=false so
// the caller falls back to Wheel.
func (b *subprocessBuild) Metadata(ctx context.Context) (metadata.CoreMetadata, bool, error) {
	module, _, found := strings.Cut(b.backend, ":")
	if !found {
		module = b.backend
	}
	metaDir, err := os.MkdirTemp(filepath.Dir(b.venvDir), "pep-build-meta-*")
	if err != nil {
		return metadata.CoreMetadata{}, false, errors.Wrap(err, "creating metadata scratch directory")
	}
	defer os.RemoveAll(metaDir)
	script := fmt.Sprintf(`
import %s as backend
if not hasattr(backend, "prepare_metadata_for_build_wheel"):
    raise SystemExit(42)
print(backend.prepare_metadata_for_build_wheel(%q))
`, module, metaDir)
	cmd := exec.CommandContext(ctx, b.venvPython(), "-c", script)
	cmd.Dir = b.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 42 {
			return metadata.CoreMetadata{}, false, nil
		}
		return metadata.CoreMetadata{}, false, &BackendError{Err: errors.Wrap(err, "preparing metadata"), Stderr: stderr.String()}
	}
	distInfo := strings.TrimSpace(stdout.String())
	f, err := os.Open(filepath.Join(metaDir, distInfo, "METADATA"))
	if err != nil {
		return metadata.CoreMetadata{}, false, errors.Wrap(err, "opening prepared metadata")
	}
	defer f.Close()
	m, err := metadata.ParseCoreMetadata(f)
	if err != nil {
		return metadata.CoreMetadata{}, false, err
	}
	return *m, true, nil
}

func copyFSToDir(source fs.FS, dest string) error {
	return fs.WalkDir(source, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dest, p)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := source.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		info, err := d.Info()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0o600)
		if err != nil {
			return err
		}
		defer dst.Close()
		_, err = io.Copy(dst, src)
		return err
	})
}
