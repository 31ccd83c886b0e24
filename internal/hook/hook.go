// Package hook runs the user command configured to follow a successful
// generation, such as `git add {filepath} && git commit -m auto`.
package hook

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/logging"
	"github.com/conneroisu/tagwriting/internal/placeholder"
)

// Keys are the placeholders a hook command may use.
var Keys = []string{"filepath"}

// Runner executes hook commands.
type Runner struct {
	timeout time.Duration
	logger  logging.Logger
}

// NewRunner creates a runner. A zero timeout means 30 seconds.
func NewRunner(timeout time.Duration, logger logging.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runner{timeout: timeout, logger: logger.WithComponent("hook")}
}

// Command fills {filepath} in template with the shell-quoted path and
// returns the argv that runs the result through the platform shell
// (`sh -c`, or `cmd /C` on Windows). A blank template yields nil.
func Command(template, path string) []string {
	if strings.TrimSpace(template) == "" {
		return nil
	}
	line := placeholder.Fill(template, map[string]string{"filepath": Quote(path)})
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", line}
	}
	return []string{"sh", "-c", line}
}

// Quote makes path a single shell word.
func Quote(path string) string {
	if runtime.GOOS == "windows" {
		return `"` + path + `"`
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// Run executes template for the document at path, in the document's
// directory. An empty template is a no-op.
func (r *Runner) Run(ctx context.Context, template, path string) error {
	args := Command(template, path)
	if len(args) == 0 {
		return nil
	}
	line := args[len(args)-1]

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Dir(path)
	// Children of the shell may hold the output pipe after it is killed.
	cmd.WaitDelay = time.Second

	r.logger.Debug(ctx, "Running hook", "command", line)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return tagerrors.NewHookError(fmt.Sprintf("hook %q timed out", line), ctx.Err()).WithPath(path)
		}
		return tagerrors.NewHookError(fmt.Sprintf("hook %q failed: %s", line, strings.TrimSpace(string(output))), err).WithPath(path)
	}

	if out := strings.TrimSpace(string(output)); out != "" {
		r.logger.Debug(ctx, "Hook output", "output", logging.Truncate(out, 1000))
	}
	return nil
}
