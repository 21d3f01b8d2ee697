package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const scriptTimeout = time.Second

// runScript pipes text through the user's filter script and returns the
// replacement. The contract mirrors a Unix filter: exit 0 makes stdout
// the new text, with empty stdout meaning the capture should be dropped.
// A missing script, a non-zero exit, or a timeout all leave the text
// untouched so a broken script never blocks capture.
func runScript(ctx context.Context, logger *slog.Logger, path, text string) string {
	if _, err := os.Stat(path); err != nil {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()

	cmd := scriptCommand(ctx, path)
	// Children the script leaves behind must not hold the pipes open past
	// the timeout.
	cmd.WaitDelay = time.Second
	cmd.Stdin = strings.NewReader(text)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		logger.Warn("monitor: filter script failed",
			"script", path, "error", err, "stderr", strings.TrimSpace(errOut.String()))
		return text
	}
	return strings.TrimSpace(out.String())
}

// scriptCommand picks how to invoke the script: directly when it carries
// an executable bit, otherwise through the interpreter its extension
// implies.
func scriptCommand(ctx context.Context, path string) *exec.Cmd {
	if info, err := os.Stat(path); err == nil && info.Mode()&0o111 != 0 {
		return exec.CommandContext(ctx, path)
	}
	switch filepath.Ext(path) {
	case ".py":
		return exec.CommandContext(ctx, "python3", path)
	case ".sh":
		return exec.CommandContext(ctx, "bash", path)
	}
	return exec.CommandContext(ctx, path)
}
