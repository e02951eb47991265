package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sherbacov/zsnapd/internal/zfs"
	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// runCaptured runs argv[0] with argv[1:] and returns its captured stdout.
// Nonzero exit surfaces as a ToolFailure carrying the full stderr, matching
// internal/zfs's own createError convention.
func runCaptured(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", zsnapderrors.New(zsnapderrors.KindConfigError, "", "remote-command", fmt.Errorf("empty command"))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", zsnapderrors.New(zsnapderrors.KindToolFailure, "", "remote-command",
			fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, stderr.String()))
	}
	return stdout.String(), nil
}

// parseRemoteSnapshotList parses "name\tcreation" lines (the output of
// `zfs list -Hp -t snapshot -o name,creation`) as run on a remote endpoint
// into the same []zfs.Dataset shape the local adapter returns, so the
// replication reconciliation logic (internal/engine) doesn't need to know
// whether a listing came from the local adapter or an SSH round-trip.
func parseRemoteSnapshotList(dataset, raw string) ([]zfs.Dataset, error) {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	out := make([]zfs.Dataset, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("remote snapshot list for %s: malformed line %q", dataset, line)
		}
		creation, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("remote snapshot list for %s: bad creation value in %q: %w", dataset, line, err)
		}
		out = append(out, zfs.Dataset{
			Name:     fields[0],
			Type:     zfs.DatasetSnapshot,
			Creation: creation,
		})
	}
	return out, nil
}
