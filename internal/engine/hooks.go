package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// runHook runs a configured shell string (preexec/postexec/replicate_postexec)
// through the shell, since the dataset configuration carries these as shell
// strings rather than argv vectors (unlike internal/remote's SSH command
// templates, which are split with strings.Fields and run without a shell).
func runHook(ctx context.Context, dataset, step, shellCmd string) error {
	if shellCmd == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return zsnapderrors.New(zsnapderrors.KindHookFailure, dataset, step,
			fmt.Errorf("%s: %w: %s", shellCmd, err, stderr.String()))
	}
	return nil
}
