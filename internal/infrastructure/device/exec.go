package device

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
)

// Result captures what a command wrote.
type Result struct {
	Stdout []byte
	Stderr string
}

// PrimaryOutput returns stderr if present, otherwise stdout.
func PrimaryOutput(res Result) string {
	if res.Stderr != "" {
		return res.Stderr
	}
	return strings.TrimSpace(string(res.Stdout))
}

// Runner executes name with args and collects its output.
type Runner func(ctx context.Context, name string, args ...string) (Result, error)

// ExecRunner runs commands on the host. Stdout is kept byte for byte since
// screenshots travel through it. A non-nil Stderr tee also receives the
// command's stderr.
func ExecRunner(stderr io.Writer) Runner {
	return func(ctx context.Context, name string, args ...string) (Result, error) {
		var stdoutBuf, stderrBuf bytes.Buffer
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = &stdoutBuf
		if stderr != nil {
			cmd.Stderr = io.MultiWriter(stderr, &stderrBuf)
		} else {
			cmd.Stderr = &stderrBuf
		}

		err := cmd.Run()

		return Result{
			Stdout: stdoutBuf.Bytes(),
			Stderr: strings.TrimSpace(stderrBuf.String()),
		}, err
	}
}
