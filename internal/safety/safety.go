// Package safety is the engine's last line of defense against an
// operator running it against the wrong path: an opt-in interactive
// confirmation prompt requiring the purge root to be typed back exactly.
// The root-denylist check that spec.md §4.1 also calls safety lives in
// internal/config, since it must run before Config can even be built;
// this package is only the supplemental --confirm surface.
//
// Grounded on the teacher's safety.GetUserConfirmation and pathsMatch
// (internal/safety/validator.go), narrowed to POSIX path comparison (the
// teacher's runtime.GOOS branch for case-insensitive Windows matching
// does not apply to this spec's Linux/EFS target) and to this spec's
// config fields (root, dry_run) instead of the teacher's ad hoc
// path/fileCount/dryRun/force argument list.
package safety

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Confirm prompts the operator to type root back exactly before a
// non-dry-run purge proceeds. Returns true if the input matches. force
// skips the prompt and returns true immediately — used for non-interactive
// invocations (cron, CI) that have already been vetted by an operator.
func Confirm(in io.Reader, out io.Writer, root string, dryRun bool, force bool) bool {
	if force {
		fmt.Fprintln(out, "confirmation skipped: --force")
		return true
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	fmt.Fprintln(out)
	if dryRun {
		fmt.Fprintf(out, "DRY RUN: simulating a purge of:\n")
	} else {
		fmt.Fprintf(out, "WARNING: about to permanently purge aged files under:\n")
	}
	fmt.Fprintf(out, "  %s\n\n", absRoot)
	if !dryRun {
		fmt.Fprintln(out, "This action cannot be undone.")
	}
	fmt.Fprintln(out, "Type the full path exactly as shown above to continue:")
	fmt.Fprint(out, "> ")

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	typed := strings.TrimSpace(line)

	typedAbs, err := filepath.Abs(typed)
	if err != nil {
		typedAbs = typed
	}
	return pathsMatch(absRoot, typedAbs)
}

// pathsMatch compares two cleaned paths case-sensitively, matching POSIX
// filesystem semantics.
func pathsMatch(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
