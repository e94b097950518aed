// Package nedscan discovers the network types declared in the engine's NED
// sources, so operators can pick a topology by name.
package nedscan

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
	"github.com/specialistvlad/manetbench/internal/fsutil"
)

var (
	networkRe = regexp.MustCompile(`\bnetwork\s+(\w+)`)
	packageRe = regexp.MustCompile(`\bpackage\s+([\w.]+);`)
)

// Declarations returns the networks declared in one NED source. Each name is
// reported both bare and qualified by the file's package, when it has one.
func Declarations(src []byte) []string {
	var pkg string
	if m := packageRe.FindSubmatch(src); m != nil {
		pkg = string(m[1])
	}

	var out []string
	for _, m := range networkRe.FindAllSubmatch(src, -1) {
		name := string(m[1])
		if pkg != "" {
			out = append(out, pkg+"."+name)
		}
		out = append(out, name)
	}
	return out
}

// Networks scans <workingDir>/examples recursively and returns the sorted,
// de-duplicated network names. A missing examples directory yields no
// names and no error. Unreadable files are skipped.
func Networks(ctx context.Context, workingDir string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(workingDir, "examples")
	if !fsutil.DirExists(dir) {
		logger.Warn("Examples directory not found.", "dir", dir)
		return nil, nil
	}

	files, err := fsutil.FindFilesByExtension(dir, ".ned")
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			logger.Warn("Could not read NED file.", "file", f, "error", err)
			continue
		}
		for _, n := range Declarations(src) {
			seen[n] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	logger.Info("Networks discovered.", "count", len(names), "files", len(files))
	return names, nil
}

// Qualify returns the package-qualified name of network, searching the
// examples and src trees under workingDir. ok is false when no declaration
// was found.
func Qualify(ctx context.Context, workingDir, network string) (string, bool) {
	declRe := regexp.MustCompile(`\bnetwork\s+` + regexp.QuoteMeta(network) + `\b`)
	for _, sub := range []string{"examples", "src"} {
		dir := filepath.Join(workingDir, sub)
		if !fsutil.DirExists(dir) {
			continue
		}
		files, err := fsutil.FindFilesByExtension(dir, ".ned")
		if err != nil {
			continue
		}
		for _, f := range files {
			src, err := os.ReadFile(f)
			if err != nil || !declRe.Match(src) {
				continue
			}
			if m := packageRe.FindSubmatch(src); m != nil {
				return string(m[1]) + "." + network, true
			}
			return network, true
		}
	}
	ctxlog.FromContext(ctx).Warn("Network declaration not found.", "network", network)
	return "", false
}
