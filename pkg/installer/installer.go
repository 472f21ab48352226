// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package installer materializes a prepared wheel's files into a
// virtual environment's site-packages directory, per spec.md §4.7.
package installer

import (
	"context"
	"io"
	"log"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/perr"
	"github.com/pep-run/pep/pkg/preparer"
	"github.com/pep-run/pep/pkg/record"
	"github.com/pep-run/pep/pkg/venv"
)

// Target names where an installer run materializes files: the
// environment's purelib directory and its scripts directory.
type Target struct {
	Purelib string
	Scripts string
	// Python is the interpreter path written into generated POSIX
	// launcher shebangs.
	Python string
}

// ForEnvironment derives a Target from a loaded virtual environment.
func ForEnvironment(env *venv.Environment) Target {
	return Target{Purelib: env.Purelib(), Scripts: env.ScriptsDir(), Python: env.Python()}
}

// Report summarizes one installed distribution: the link method
// Materialize actually used for its files, and any console scripts
// generated for it.
type Report struct {
	Dist        string
	LinkMethods map[cache.LinkMethod]int
	EntryPoints []string
}

// Install materializes every prepared distribution into target, in the
// order given. Byte-compilation is skipped unless compilePython is a
// non-empty interpreter path, matching spec.md §4.7 step 5's "optional,
// never fatal" byte-compile pass.
func Install(ctx context.Context, target Target, prepared []preparer.Prepared, compilePython string) ([]Report, error) {
	reports := make([]Report, 0, len(prepared))
	for _, p := range prepared {
		r, err := installOne(target, p)
		if err != nil {
			return reports, errors.Wrapf(err, "installing %s", p.Dist.Name)
		}
		reports = append(reports, r)
	}
	if compilePython != "" {
		for _, r := range reports {
			byteCompile(ctx, compilePython, target.Purelib, r.Dist)
		}
	}
	return reports, nil
}

func installOne(target Target, p preparer.Prepared) (Report, error) {
	distInfoDir, err := findDistInfo(p.Wheel.Path)
	if err != nil {
		return Report{}, err
	}
	recordPath := filepath.Join(p.Wheel.Path, distInfoDir, "RECORD")
	f, err := os.Open(recordPath)
	if err != nil {
		return Report{}, errors.Wrapf(err, "opening RECORD for %s", p.Dist.Name)
	}
	entries, err := record.Read(f)
	f.Close()
	if err != nil {
		return Report{}, err
	}

	dataDirPrefix := strings.TrimSuffix(distInfoDir, ".dist-info") + ".data"
	selfRecordPath := path.Join(distInfoDir, "RECORD")
	report := Report{Dist: p.Dist.Name, LinkMethods: map[cache.LinkMethod]int{}}
	var newEntries []record.Entry
	for _, e := range entries {
		if e.Path == selfRecordPath {
			// Rewritten below with the destination's own relative paths;
			// the source copy is stale as soon as any path changes.
			continue
		}
		dest, skip := resolveDest(target, dataDirPrefix, e.Path)
		if skip {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return Report{}, errors.Wrapf(err, "creating directory for %s", dest)
		}
		if _, err := os.Lstat(dest); err == nil {
			return Report{}, &perr.FileExistsError{Path: dest}
		}
		method, err := cache.Materialize(filepath.Join(p.Wheel.Path, e.Path), dest)
		if err != nil {
			return Report{}, errors.Wrapf(err, "materializing %s", e.Path)
		}
		report.LinkMethods[method]++
		rel, err := filepath.Rel(target.Purelib, dest)
		if err != nil {
			rel = dest
		}
		newEntries = append(newEntries, record.Entry{Path: filepath.ToSlash(rel), Algo: e.Algo, Hex: e.Hex, Size: e.Size, HasHash: e.HasHash})
	}

	newRecordPath := filepath.Join(target.Purelib, distInfoDir, "RECORD")
	newEntries = append(newEntries, record.SelfEntry(selfRecordPath))
	rf, err := os.Create(newRecordPath)
	if err != nil {
		return Report{}, errors.Wrap(err, "creating installed RECORD")
	}
	defer rf.Close()
	if err := record.Write(rf, newEntries); err != nil {
		return Report{}, err
	}

	eps, err := installEntryPoints(target, distInfoDir)
	if err != nil {
		return Report{}, err
	}
	report.EntryPoints = eps
	return report, nil
}

// resolveDest maps a RECORD-relative path onto target: an ordinary file
// installs directly under Purelib; a file under "<name>.data/scripts/"
// installs by basename under Scripts; files under any other
// "<name>.data/*" subtree (platlib, headers, plain data) are outside this
// installer's scope (spec.md names no sysconfig scheme mapping for them)
// and are skipped, logged at the call site's discretion via the returned
// skip flag.
func resolveDest(target Target, dataDirPrefix, recordPath string) (dest string, skip bool) {
	if !strings.HasPrefix(recordPath, dataDirPrefix+"/") {
		return filepath.Join(target.Purelib, filepath.FromSlash(recordPath)), false
	}
	rest := strings.TrimPrefix(recordPath, dataDirPrefix+"/")
	section, sub, ok := strings.Cut(rest, "/")
	if !ok {
		return "", true
	}
	if section == "scripts" {
		return filepath.Join(target.Scripts, filepath.FromSlash(sub)), false
	}
	return "", true
}

func findDistInfo(archiveDir string) (string, error) {
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return "", errors.Wrapf(err, "reading archive directory %q", archiveDir)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".dist-info") {
			return e.Name(), nil
		}
	}
	return "", errors.Errorf("no .dist-info directory found in %q", archiveDir)
}

// byteCompile invokes the interpreter's compileall module over the whole
// purelib directory, per spec.md §4.7 step 5: errors are logged, never
// fatal, since a missing .pyc only costs first-import latency.
func byteCompile(ctx context.Context, pythonPath, purelib, distName string) {
	cmd := exec.CommandContext(ctx, pythonPath, "-m", "compileall", "-q", purelib)
	if err := cmd.Run(); err != nil {
		log.Printf("byte-compiling after installing %s: %v", distName, err)
	}
}

// Launcher renders the POSIX shebang-stub launcher script for a console
// entry point. Windows needs a trampoline binary with the target wheel's
// entry point appended as a zip trailer (original source's
// `install-wheel-rs` launcher scheme); this module only emits POSIX
// scripts, tracked as an open gap in DESIGN.md rather than silently
// dropped.
func Launcher(pythonPath, module, function string) string {
	var b strings.Builder
	b.WriteString("#!" + pythonPath + "\n")
	b.WriteString("import sys\n")
	b.WriteString("from " + module + " import " + firstComponent(function) + "\n")
	b.WriteString("if __name__ == \"__main__\":\n")
	b.WriteString("    sys.exit(" + function + "())\n")
	return b.String()
}

func firstComponent(dotted string) string {
	if i := strings.Index(dotted, "."); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

func installEntryPoints(target Target, distInfoDir string) ([]string, error) {
	epPath := filepath.Join(target.Purelib, distInfoDir, "entry_points.txt")
	f, err := os.Open(epPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", epPath)
	}
	defer f.Close()
	sections, err := parseINI(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", epPath)
	}
	var names []string
	for key, value := range sections["console_scripts"] {
		module, function, ok := strings.Cut(value, ":")
		if !ok {
			continue
		}
		script := Launcher(target.Python, strings.TrimSpace(module), strings.TrimSpace(function))
		dest := filepath.Join(target.Scripts, key)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dest, []byte(script), 0o755); err != nil {
			return nil, errors.Wrapf(err, "writing launcher %s", dest)
		}
		names = append(names, key)
	}
	return names, nil
}

// parseINI parses the "[section]\nkey = value" subset entry_points.txt
// uses: no quoting, no escapes, no nested sections.
func parseINI(r io.Reader) (map[string]map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	sections := map[string]map[string]string{}
	current := ""
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.TrimSpace(line[1 : len(line)-1])
			if sections[current] == nil {
				sections[current] = map[string]string{}
			}
			continue
		}
		if current == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		sections[current][strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return sections, nil
}

