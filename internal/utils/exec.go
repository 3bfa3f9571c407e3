package utils

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds external tools (renderer, ffmpeg) that have no timeout of their own.
const DefaultCommandTimeout = 2 * time.Hour

// RunCommand runs command through bash in dir (empty = current directory)
// and returns the combined stdout/stderr.
func RunCommand(ctx context.Context, dir, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultCommandTimeout)
	defer cancel()

	Logf("run: %s (dir=%s)", command, dir)

	cmd := exec.CommandContext(ctx, "bash", "-lc", command)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if output.Len() > 0 {
			Logf("output (error):\n%s", strings.TrimRight(output.String(), "\n"))
		}
		return output.String(), fmt.Errorf("command failed: %w", err)
	}
	if Verbose && output.Len() > 0 {
		Logf("output:\n%s", strings.TrimRight(output.String(), "\n"))
	}
	return output.String(), nil
}
