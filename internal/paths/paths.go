// Package paths computes the locations of build artifacts, reports and the
// run history under a cargo root.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// StateDirName holds panic-list's own files inside the cargo root.
	StateDirName = ".panic-list"

	historyFileName = "history.db"
	reportFileName  = "panic-list.txt"
	ltoObjectName   = "lto.o"
)

// ProfileDir returns the directory cargo uses under target/ for a profile.
// The built-in dev and test profiles share "debug", bench shares "release";
// custom profiles use their own name.
func ProfileDir(profile string) string {
	switch profile {
	case "", "dev", "test":
		return "debug"
	case "bench":
		return "release"
	default:
		return profile
	}
}

// TargetDir returns the cargo target directory for cargoRoot, honouring
// CARGO_TARGET_DIR the way cargo does.
func TargetDir(cargoRoot string) string {
	if dir := os.Getenv("CARGO_TARGET_DIR"); dir != "" {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(cargoRoot, dir)
	}
	return filepath.Join(cargoRoot, "target")
}

// DepsDir returns target/<profile-dir>/deps, where rustc leaves the bitcode.
func DepsDir(cargoRoot, profile string) string {
	return filepath.Join(TargetDir(cargoRoot), ProfileDir(profile), "deps")
}

// LtoObject is the -o argument handed to llvm-lto.
func LtoObject(depsDir string) string {
	return filepath.Join(depsDir, ltoObjectName)
}

// MergedBitcode is the module llvm-lto saves with --save-merged-module.
func MergedBitcode(depsDir string) string {
	return LtoObject(depsDir) + ".merged.bc"
}

// CallGraph is the file opt's dot-callgraph pass writes next to its input.
func CallGraph(depsDir string) string {
	return MergedBitcode(depsDir) + ".callgraph.dot"
}

// DefaultReport is where the report goes when no output path is given.
func DefaultReport(depsDir string) string {
	return filepath.Join(depsDir, reportFileName)
}

// IsLtoArtifact reports whether a file in the deps directory was produced by
// a previous llvm-lto run and must not be fed back into it.
func IsLtoArtifact(name string) bool {
	return strings.HasPrefix(name, ltoObjectName)
}

// StateDir returns the .panic-list directory of a cargo root.
func StateDir(cargoRoot string) string {
	return filepath.Join(cargoRoot, StateDirName)
}

// HistoryDB returns the history database path. A configured path wins; a
// relative one is resolved against cargoRoot.
func HistoryDB(cargoRoot, configured string) string {
	if configured == "" {
		return filepath.Join(StateDir(cargoRoot), historyFileName)
	}
	return Resolve(cargoRoot, configured)
}

// Resolve makes path absolute relative to base. Absolute paths are returned
// cleaned.
func Resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// CanonicalizePath converts an absolute path to a root-relative path with
// forward slashes, resolving symlinks where the files exist.
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = absolutePath
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = root
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
