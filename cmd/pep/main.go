// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pep-run/pep/internal/httpx"
	"github.com/pep-run/pep/pkg/build"
	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/distdb"
	"github.com/pep-run/pep/pkg/installer"
	"github.com/pep-run/pep/pkg/lockfile"
	"github.com/pep-run/pep/pkg/metadata"
	"github.com/pep-run/pep/pkg/perr"
	"github.com/pep-run/pep/pkg/planner"
	"github.com/pep-run/pep/pkg/preparer"
	"github.com/pep-run/pep/pkg/pypi/digest"
	"github.com/pep-run/pep/pkg/pypi/distname"
	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/pypi/pep508"
	"github.com/pep-run/pep/pkg/registry/simple"
	"github.com/pep-run/pep/pkg/resolver"
	"github.com/pep-run/pep/pkg/sitepkgs"
	"github.com/pep-run/pep/pkg/uninstaller"
	"github.com/pep-run/pep/pkg/vcs/git"
	"github.com/pep-run/pep/pkg/venv"
)

// stringList accumulates a repeatable flag ("--extra-index-url" may be
// given more than once), matching spec.md §6's `--extra-index-url`,
// `--find-links`, `--reinstall-package`, `--upgrade-package`,
// `--no-build-package`, `--no-binary-package`.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var (
	indexURL        = flag.String("index-url", "https://pypi.org/simple", "base URL of the package index")
	extraIndexURLs  stringList
	findLinks       stringList
	noIndex         = flag.Bool("no-index", false, "ignore --index-url and --extra-index-url (--find-links is not used as a source)")
	offline         = flag.Bool("offline", false, "never hit the network, serve only from cache")
	indexStrategy   = flag.String("index-strategy", "first-index", "first-index, unsafe-first-match, or unsafe-best-match")
	resolutionMode  = flag.String("resolution", "highest", "highest, lowest, or lowest-direct")
	prereleaseMode  = flag.String("prerelease", "if-necessary", "disallow, allow, or if-necessary")
	excludeNewer    = flag.String("exclude-newer", "", "exclude files published after this timestamp")
	requireHashes   = flag.Bool("require-hashes", false, "every distribution must match a configured hash")
	verifyHashes    = flag.Bool("verify-hashes", false, "check hashes when present, without requiring them")
	reinstall       = flag.Bool("reinstall", false, "reinstall every resolved package")
	reinstallPkgs   stringList
	upgrade         = flag.Bool("upgrade", false, "allow upgrading already-locked packages")
	upgradePkgs     stringList
	noBuild         = flag.Bool("no-build", false, "never build from sdist or source")
	noBuildPkgs     stringList
	noBinary        = flag.Bool("no-binary", false, "never install a prebuilt wheel")
	noBinaryPkgs    stringList
	keyringProvider = flag.String("keyring-provider", "disabled", "disabled or subprocess")
	cacheDir        = flag.String("cache-dir", defaultCacheDir(), "cache directory root")
	noCache         = flag.Bool("no-cache", false, "use a fresh, throwaway cache directory")
	venvDir         = flag.String("venv", os.Getenv("VIRTUAL_ENV"), "virtual environment root")
	downloadJobs    = flag.Int("jobs", 8, "maximum concurrent downloads")
	buildJobs       = flag.Int("build-jobs", 4, "maximum concurrent builds")
	compileallFlag  = flag.Bool("compile", false, "byte-compile installed modules after install")
	outputFlag      = flag.String("output-file", "requirements.lock", "path to write the compiled lock file")
)

func defaultCacheDir() string {
	if d := os.Getenv("PEP_CACHE_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pep-cache")
	}
	return filepath.Join(home, ".cache", "pep")
}

var rootCmd = &cobra.Command{
	Use:   "pep [subcommand]",
	Short: "A resolver, cache, and installer for Python packages",
}

var compileCmd = &cobra.Command{
	Use:   "compile <reqs...>",
	Short: "Resolve requirements and emit a pinned lock file.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		env := mustLoadEnv()
		db := mustBuildDB(env)
		res, err := resolve(ctx, db, env, args)
		if err != nil {
			fail(err)
		}
		lf := lockfile.FromResolution(res)
		f, err := os.Create(*outputFlag)
		if err != nil {
			fail(err)
		}
		defer f.Close()
		if err := lockfile.EncodeYAML(f, lf); err != nil {
			fail(err)
		}
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <reqs...>",
	Short: "Reconcile the active environment to exactly the resolved pins.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		runInstall(ctx, args, true)
	},
}

var installCmd = &cobra.Command{
	Use:   "install <reqs...>",
	Short: "Resolve and install requirements, without pruning.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		runInstall(ctx, args, false)
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name...>",
	Short: "Remove named packages from the active environment.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		env := mustLoadEnv()
		installed, err := sitepkgs.Index(installer.ForEnvironment(env).Purelib)
		if err != nil {
			fail(err)
		}
		for _, n := range args {
			dist, ok := installed[name.Normalize(n)]
			if !ok {
				fail(errorf("%s is not installed", n))
			}
			if _, err := uninstaller.Uninstall(installer.ForEnvironment(env).Purelib, dist); err != nil {
				fail(err)
			}
		}
	},
}

var freezeCmd = &cobra.Command{
	Use:   "freeze",
	Short: "List installed distributions.",
	Run: func(cmd *cobra.Command, args []string) {
		env := mustLoadEnv()
		installed, err := sitepkgs.Index(installer.ForEnvironment(env).Purelib)
		if err != nil {
			fail(err)
		}
		names := make([]string, 0, len(installed))
		for n := range installed {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			d := installed[n]
			fmt.Fprintf(cmd.OutOrStdout(), "%s==%s\n", d.Name, d.Version.String())
		}
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or maintain the distribution cache.",
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the cache directory root.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), resolveCacheDir())
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale bucket versions and orphan archive entries.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		buckets := cache.NewBuckets(resolveCacheDir())
		live := collectLiveArchiveIDs(buckets)
		stats, err := cache.Prune(ctx, buckets, live)
		if err != nil {
			fail(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d directories (%d bytes)\n", stats.RemovedDirs, stats.RemovedBytes)
	},
}

func init() {
	flag.Var(&extraIndexURLs, "extra-index-url", "additional package index URL (repeatable)")
	flag.Var(&findLinks, "find-links", "additional local directory or URL to search for files (repeatable)")
	flag.Var(&reinstallPkgs, "reinstall-package", "reinstall this specific package (repeatable)")
	flag.Var(&upgradePkgs, "upgrade-package", "allow upgrading this specific package (repeatable)")
	flag.Var(&noBuildPkgs, "no-build-package", "never build this specific package from source (repeatable)")
	flag.Var(&noBinaryPkgs, "no-binary-package", "never install a prebuilt wheel for this specific package (repeatable)")

	globalFlagNames := []string{
		"index-url", "no-index", "offline", "index-strategy", "resolution",
		"prerelease", "exclude-newer", "require-hashes", "verify-hashes",
		"reinstall", "upgrade", "no-build", "no-binary", "keyring-provider",
		"cache-dir", "no-cache", "venv", "jobs", "build-jobs",
		"extra-index-url", "find-links", "reinstall-package", "upgrade-package",
		"no-build-package", "no-binary-package",
	}
	for _, cmd := range []*cobra.Command{compileCmd, syncCmd, installCmd, uninstallCmd, freezeCmd, cachePruneCmd, cacheDirCmd} {
		for _, name := range globalFlagNames {
			if gf := flag.Lookup(name); gf != nil {
				cmd.Flags().AddGoFlag(gf)
			}
		}
	}
	compileCmd.Flags().AddGoFlag(flag.Lookup("output-file"))
	installCmd.Flags().AddGoFlag(flag.Lookup("compile"))
	syncCmd.Flags().AddGoFlag(flag.Lookup("compile"))

	rootCmd.AddCommand(compileCmd, syncCmd, installCmd, uninstallCmd, freezeCmd, cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd, cacheDirCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func toNormalizedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[name.Normalize(n)] = true
	}
	return set
}

// fail prints err's derivation chain and exits with spec.md §6's mapped
// code, matching the teacher's log.Fatal(errors.Wrap(...)) idiom but routed
// through the taxonomy so a resolution failure and an internal bug exit
// differently.
func fail(err error) {
	fmt.Fprintln(os.Stderr, perr.FormatChain(err))
	os.Exit(perr.ExitCode(err))
}

func resolveCacheDir() string {
	if *noCache {
		d, err := os.MkdirTemp("", "pep-cache-*")
		if err != nil {
			fail(err)
		}
		return d
	}
	return *cacheDir
}

func mustLoadEnv() *venv.Environment {
	root := *venvDir
	if root == "" {
		fail(errorf("no virtual environment active: pass --venv or set VIRTUAL_ENV"))
	}
	env, err := venv.Load(root)
	if err != nil {
		fail(err)
	}
	return env
}

// buildIndexClient assembles the Simple API client stack from the global
// index flags: a MultiIndexClient fanning out over every configured index
// root, each wrapped with a user-agent header and, under --offline, an
// httpx.OfflineClient that refuses any network attempt outright so a
// cache miss fails loudly instead of silently degrading.
//
// --find-links is parsed but not wired to a Client: it names a flat HTML
// page or local directory rather than a PEP 503/691 Simple API root, which
// this module's simple.Client implementations do not parse; left as an
// explicit gap rather than silently dropped.
func buildIndexClient() simple.Client {
	var base httpx.BasicClient = http.DefaultClient
	if *offline {
		base = httpx.OfflineClient{}
	}
	base = &httpx.WithUserAgent{BasicClient: base, UserAgent: "pep/0.1"}

	roots := []string{*indexURL}
	if !*noIndex {
		roots = append(roots, extraIndexURLs...)
	} else {
		roots = []string{}
	}
	clients := make([]simple.Client, 0, len(roots))
	for _, root := range roots {
		u, err := url.Parse(root)
		if err != nil {
			fail(err)
		}
		clients = append(clients, &simple.HTTPClient{Client: base, Root: u})
	}
	strategy := simple.FirstIndex
	switch *indexStrategy {
	case "unsafe-first-match":
		strategy = simple.UnsafeFirstMatch
	case "unsafe-best-match":
		strategy = simple.UnsafeBestMatch
	}
	return &simple.MultiIndexClient{Indexes: clients, Strategy: strategy}
}

func mustBuildDB(env *venv.Environment) *distdb.DB {
	return &distdb.DB{
		Cache:          cache.NewBuckets(resolveCacheDir()),
		Index:          buildIndexClient(),
		Builder:        &build.SubprocessContext{Python: env.Python()},
		Git:            &git.DefaultSource{},
		AllowBuild:     !*noBuild,
		RequiresPython: "==" + env.Config.Version,
	}
}

// defaultTags derives a pragmatic compatible-tag set for the active
// interpreter: the universal "py3-none-any"/"py{M}-none-any" tags plus a
// best-effort CPython ABI/platform tag from runtime.GOOS/GOARCH. This is
// not a full packaging.tags-equivalent platform compatibility matrix (no
// manylinux glibc-version probing, no macOS deployment-target ladder); it
// only needs to be good enough to pick a real wheel off PyPI for the host
// this CLI runs on, and pkg/metadata/pkg/distname already implement the
// general tag-compatibility logic correctly for whatever tag set is given.
func defaultTags(major, minor int) []distname.Tag {
	cpTag := fmt.Sprintf("cp%d%d", major, minor)
	return []distname.Tag{
		{Python: cpTag, ABI: cpTag, Platform: platformTag()},
		{Python: cpTag, ABI: "abi3", Platform: platformTag()},
		{Python: fmt.Sprintf("py%d", major), ABI: "none", Platform: "any"},
		{Python: "py3", ABI: "none", Platform: "any"},
	}
}

func platformTag() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	switch runtime.GOOS {
	case "linux":
		return "manylinux_2_17_" + arch
	case "darwin":
		return "macosx_11_0_" + arch
	case "windows":
		return "win_amd64"
	default:
		return "any"
	}
}

func resolutionModeFlag() resolver.ResolutionMode {
	switch *resolutionMode {
	case "lowest":
		return resolver.Lowest
	case "lowest-direct":
		return resolver.LowestDirect
	default:
		return resolver.Highest
	}
}

func prereleaseModeFlag() resolver.PrereleaseMode {
	switch *prereleaseMode {
	case "allow":
		return resolver.Allow
	case "disallow":
		return resolver.Disallow
	default:
		return resolver.IfNecessary
	}
}

func hashPolicy() digest.Policy {
	switch {
	case *requireHashes:
		return digest.Require
	case *verifyHashes:
		return digest.Verify
	default:
		return digest.Disabled
	}
}

func parseRequirements(args []string) ([]pep508.Requirement, error) {
	reqs := make([]pep508.Requirement, 0, len(args))
	for _, a := range args {
		r, err := pep508.ParseRequirement(a)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// buildMetadataProvider constructs the metadata.Provider shared by
// resolution and pin-to-Dist translation, so both stages agree on exactly
// which files are compatible with the active interpreter.
func buildMetadataProvider(db *distdb.DB, env *venv.Environment) (*metadata.Provider, pep440.Version, error) {
	pythonVersion, err := pep440.Parse(env.Config.Version)
	if err != nil {
		return nil, pep440.Version{}, err
	}
	return &metadata.Provider{
		Index:          db.Index,
		DB:             db,
		RequiresPython: pep440.Compile(pep440.Specifiers{{Operator: pep440.OpEqual, Version: pythonVersion}}),
		Tags:           defaultTags(pythonVersion.Release[0], versionMinor(pythonVersion)),
	}, pythonVersion, nil
}

func resolve(ctx context.Context, db *distdb.DB, env *venv.Environment, args []string) (*resolver.Resolution, error) {
	reqs, err := parseRequirements(args)
	if err != nil {
		return nil, err
	}
	metaProvider, pythonVersion, err := buildMetadataProvider(db, env)
	if err != nil {
		return nil, err
	}
	rp := &resolver.Provider{
		Metadata: metaProvider,
		URLMetadata: func(ctx context.Context, pkgName, sourceURL string) (*metadata.CoreMetadata, error) {
			kind, url, ref := classifyPinURL(sourceURL)
			m, err := db.GetMetadata(ctx, distdb.Dist{Kind: kind, Name: pkgName, URL: url, Ref: ref})
			return &m, err
		},
		PythonVersion:   pythonVersion,
		Environment:     hostEnvironment(pythonVersion),
		Mode:            resolutionModeFlag(),
		Prerelease:      prereleaseModeFlag(),
		YankedAllowance: resolver.ExcludeYanked,
	}
	return resolver.New(rp, reqs).Solve(ctx)
}

func versionMinor(v pep440.Version) int {
	if len(v.Release) > 1 {
		return v.Release[1]
	}
	return 0
}

func hostEnvironment(pythonVersion pep440.Version) pep508.Environment {
	return pep508.Environment{
		OSName:             goosToOSName(),
		SysPlatform:        goosToSysPlatform(),
		PlatformMachine:    runtime.GOARCH,
		PlatformPythonImpl: "CPython",
		PlatformSystem:     goosToSysPlatform(),
		PythonVersion:      fmt.Sprintf("%d.%d", pythonVersion.Release[0], versionMinor(pythonVersion)),
		PythonFullVersion:  pythonVersion.String(),
		ImplementationName: "cpython",
		ImplementationVer:  pythonVersion.String(),
	}
}

func goosToOSName() string {
	if runtime.GOOS == "windows" {
		return "nt"
	}
	return "posix"
}

func goosToSysPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "darwin"
	case "windows":
		return "win32"
	default:
		return "linux"
	}
}

// pinToDist resolves a resolution's (name, version, url) pin back into a
// concrete distdb.Dist: a URL/Git pin is classified by its scheme/
// extension, a registry pin re-queries the index's VersionMap for the file
// matching the pin's exact version.
func pinToDist(ctx context.Context, metaProvider *metadata.Provider, name_, version, pinURL string) (distdb.Dist, error) {
	v, err := pep440.Parse(version)
	if err != nil {
		return distdb.Dist{}, err
	}
	if pinURL == "" {
		vm, err := metaProvider.VersionMap(ctx, name_)
		if err != nil {
			return distdb.Dist{}, err
		}
		files := vm.Files[v.String()]
		for _, f := range files {
			if f.IsWheel() {
				return distdb.Dist{Kind: distdb.KindRegistry, Name: name_, Version: v, File: f.File}, nil
			}
		}
		for _, f := range files {
			return distdb.Dist{Kind: distdb.KindRegistry, Name: name_, Version: v, File: f.File}, nil
		}
		return distdb.Dist{}, errorf("no compatible file found for %s==%s", name_, version)
	}
	kind, url, ref := classifyPinURL(pinURL)
	return distdb.Dist{Kind: kind, Name: name_, Version: v, URL: url, Ref: ref}, nil
}

// classifyPinURL determines the distdb.Kind a resolved URL/Git pin routes
// through, from the encoding resolver.termFor gives it: "git+<repo>[@ref]"
// for a Git source, a bare URL ending in ".whl" for a prebuilt wheel,
// anything else for an sdist archive. Both pinToDist (installing) and
// resolve()'s URLMetadata closure (resolving) classify a pin this same
// way, so a direct-URL/Git requirement is routed through the same
// wheel/sdist/Git pipeline at both stages instead of resolve() always
// guessing sdist.
func classifyPinURL(pinURL string) (kind distdb.Kind, url, ref string) {
	if strings.HasPrefix(pinURL, "git+") {
		repo, r := splitGitRef(strings.TrimPrefix(pinURL, "git+"))
		return distdb.KindGit, repo, r
	}
	if strings.HasSuffix(pinURL, ".whl") {
		return distdb.KindURLWheel, pinURL, ""
	}
	return distdb.KindURLSdist, pinURL, ""
}

// splitGitRef splits a "git+https://host/repo@ref" URL into the plain
// repository URL and the requested ref, defaulting to the default branch
// when no "@ref" suffix is present.
func splitGitRef(repoAndRef string) (repo, ref string) {
	if i := strings.LastIndex(repoAndRef, "@"); i >= 0 && !strings.Contains(repoAndRef[i:], "/") {
		return repoAndRef[:i], repoAndRef[i+1:]
	}
	return repoAndRef, ""
}

func runInstall(ctx context.Context, args []string, prune bool) {
	env := mustLoadEnv()
	db := mustBuildDB(env)
	res, err := resolve(ctx, db, env, args)
	if err != nil {
		fail(err)
	}
	metaProvider, _, err := buildMetadataProvider(db, env)
	if err != nil {
		fail(err)
	}

	names := make([]string, 0, len(res.Pins))
	for k := range res.Pins {
		names = append(names, k)
	}
	sort.Strings(names)
	entries := make([]planner.Entry, 0, len(names))
	for _, k := range names {
		pin := res.Pins[k]
		d, err := pinToDist(ctx, metaProvider, pin.Name, pin.Version.String(), pin.URL)
		if err != nil {
			fail(err)
		}
		entries = append(entries, d)
	}

	target := installer.ForEnvironment(env)
	installed, err := sitepkgs.Index(target.Purelib)
	if err != nil {
		fail(err)
	}
	reinstallPolicy := planner.Reinstall{All: *reinstall, Packages: toNormalizedSet(reinstallPkgs)}
	plan := planner.Plan(entries, installed, reinstallPolicy, db, prune)

	prepared, err := preparer.Prepare(ctx, db, plan, nil, preparer.Concurrency{Downloads: *downloadJobs, Builds: *buildJobs}, preparer.NopReporter{})
	if err != nil {
		fail(err)
	}
	compilePython := ""
	if *compileallFlag {
		compilePython = env.Python()
	}
	if _, err := installer.Install(ctx, target, prepared, compilePython); err != nil {
		fail(err)
	}
	if prune {
		for _, extraneous := range plan.Extraneous {
			if _, err := uninstaller.Uninstall(target.Purelib, extraneous); err != nil {
				fail(err)
			}
		}
	}
}

// collectLiveArchiveIDs scans every wheel pointer and built-wheel manifest
// entry for the archive id it references, so `cache prune` only removes
// archive entries nothing still points to.
func collectLiveArchiveIDs(buckets *cache.Buckets) map[string]bool {
	live := map[string]bool{}
	var ptr struct {
		ArchiveID string `json:"archive_id"`
	}
	walkJSON := func(root string) {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
				return nil
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			if err := json.Unmarshal(b, &ptr); err != nil {
				return nil
			}
			if ptr.ArchiveID != "" {
				live[ptr.ArchiveID] = true
			}
			return nil
		})
	}
	walkJSON(buckets.Wheels.Dir())
	walkJSON(buckets.BuiltWheels.Dir())
	return live
}
