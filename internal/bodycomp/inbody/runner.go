package inbody

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()

	if err != nil {
		log.Errorf(
			"exec failed [%s %s] after %dms: %s [stderr: %s]",
			name, strings.Join(args, " "), time.Since(start).Milliseconds(),
			err, truncate(errb.String(), 8<<10),
		)
	} else {
		log.Tracef(
			"exec ok [%s %s] in %dms, stdout %d bytes",
			name, strings.Join(args, " "), time.Since(start).Milliseconds(), out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
