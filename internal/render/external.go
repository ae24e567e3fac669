package render

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
)

const maxStderrBytes = 64 << 10

// ExternalProcessRenderer runs a chart program once per request and returns its stdout.
//
// The program receives --lat, --lon and --variable, plus --start-date and --end-date
// for historical ranges. stdin is closed. Exit 0 with non-empty stdout is success;
// stderr is diagnostics only and never reaches the client.
//
// On timeout or caller cancellation the process gets SIGTERM, then SIGKILL once
// KillGrace has passed.
type ExternalProcessRenderer struct {
	Command string
	// Args precede the generated flags.
	Args []string
	// Env entries (KEY=VALUE) are appended to the service's environment.
	Env []string
	// ContentType is returned verbatim; output is never sniffed.
	ContentType    string
	Timeout        time.Duration
	KillGrace      time.Duration
	MaxOutputBytes int64
}

func (r *ExternalProcessRenderer) Render(ctx context.Context, req models.RenderRequest) (Result, error) {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	var (
		renderCtx context.Context
		cancel    context.CancelFunc
	)
	if r.Timeout > 0 {
		renderCtx, cancel = context.WithTimeout(ctx, r.Timeout)
	} else {
		renderCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	stdout := &cappedBuffer{limit: r.MaxOutputBytes, onOverflow: cancel}
	stderr := &cappedBuffer{limit: maxStderrBytes}

	cmd := exec.CommandContext(renderCtx, r.Command, r.argv(req)...)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.KillGrace

	if err := cmd.Start(); err != nil {
		return Result{}, r.finish(logger, start, &RenderError{Kind: KindStart, Err: err}, "")
	}
	waitErr := cmd.Wait()

	rerr := r.classify(ctx, renderCtx, stdout, waitErr)
	if rerr != nil {
		return Result{}, r.finish(logger, start, rerr, stderr.String())
	}
	logger.Debug("render process finished",
		zap.String("command", r.Command),
		zap.Int("bytes", stdout.Len()),
		zap.String("stderr", stderr.String()),
	)
	_ = r.finish(logger, start, nil, "")
	return Result{ContentType: r.ContentType, Body: stdout.Bytes()}, nil
}

// classify maps the process outcome onto a RenderError, or nil on success.
// Causes are checked in order: output cap, caller gone, render timeout, exit status.
func (r *ExternalProcessRenderer) classify(parent, renderCtx context.Context, stdout *cappedBuffer, waitErr error) *RenderError {
	if stdout.Overflowed() {
		return &RenderError{Kind: KindOutputTooLarge, Err: errors.New("output exceeds " + strconv.FormatInt(r.MaxOutputBytes, 10) + " bytes")}
	}
	if err := parent.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &RenderError{Kind: KindTimeout, Err: err}
		}
		return &RenderError{Kind: KindCanceled, Err: err}
	}
	if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
		return &RenderError{Kind: KindTimeout, Err: renderCtx.Err()}
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &RenderError{Kind: KindProcessExit, ExitCode: exitErr.ExitCode(), Err: waitErr}
		}
		// Exit 0 but stdout/stderr held open past WaitDelay, output may be truncated.
		return &RenderError{Kind: KindProcessExit, Err: waitErr}
	}
	if stdout.Len() == 0 {
		return &RenderError{Kind: KindEmptyOutput}
	}
	return nil
}

func (r *ExternalProcessRenderer) finish(logger *zap.Logger, start time.Time, rerr *RenderError, stderr string) error {
	observability.RenderDuration.WithLabelValues(rendererExternal).Observe(time.Since(start).Seconds())
	if rerr == nil {
		observability.RenderTotal.WithLabelValues(rendererExternal, "success").Inc()
		return nil
	}
	observability.RenderTotal.WithLabelValues(rendererExternal, string(rerr.Kind)).Inc()
	fields := []zap.Field{
		zap.String("command", r.Command),
		zap.String("kind", string(rerr.Kind)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(rerr),
	}
	if rerr.Kind == KindProcessExit {
		fields = append(fields, zap.Int("exit_code", rerr.ExitCode))
	}
	if stderr != "" {
		fields = append(fields, zap.String("stderr", stderr))
	}
	if rerr.Kind == KindCanceled {
		logger.Info("render abandoned by caller", fields...)
	} else {
		logger.Warn("render process failed", fields...)
	}
	return rerr
}

func (r *ExternalProcessRenderer) argv(req models.RenderRequest) []string {
	args := make([]string, 0, len(r.Args)+10)
	args = append(args, r.Args...)
	args = append(args,
		"--lat", strconv.FormatFloat(req.Location.Latitude, 'f', -1, 64),
		"--lon", strconv.FormatFloat(req.Location.Longitude, 'f', -1, 64),
		"--variable", string(req.Variable),
	)
	if req.DateRange != nil {
		args = append(args,
			"--start-date", req.DateRange.Start.Format(models.DateLayout),
			"--end-date", req.DateRange.End.Format(models.DateLayout),
		)
	}
	return args
}
