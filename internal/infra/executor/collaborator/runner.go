package collaborator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/neurally/internal/config"
	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
)

const (
	multipleFlag  = "--multiple"
	pathSeparator = "|"
	noLogEnv      = "NEURALLY_NO_LOG=1"
)

// Runner spawns the external analysis collaborator once per request.
// It does not retry, dedupe or time out; ctx should live as long as the app.
type Runner struct {
	app         config.AppContext
	binary      string
	interpreter string
	script      string
	table       []domain.Classification
	log         *logrus.Entry
}

func NewRunner(app config.AppContext, cfg *config.Config, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		app:         app,
		binary:      cfg.Collaborator.Binary,
		interpreter: cfg.Collaborator.Interpreter,
		script:      cfg.Collaborator.Script,
		table:       domain.Classifications,
		log:         log.WithField("component", "collaborator"),
	}
}

func (r *Runner) underBase(p string) string { return r.app.Resolve(p) }

// ResolveExecutable returns the program to spawn and, on non-Windows
// platforms, the script it runs.
func (r *Runner) ResolveExecutable() (executable, script string) {
	if r.app.IsWindows() {
		return r.underBase(r.binary), ""
	}
	return r.interpreter, r.underBase(r.script)
}

// Invocation builds the command line for req. Paths are joined with "|"
// after --multiple when there is more than one.
func (r *Runner) Invocation(req domain.Request) (domain.Invocation, error) {
	if len(req.FilePaths) == 0 {
		return domain.Invocation{}, fmt.Errorf("%w: no files", domain.ErrInvalidRequest)
	}
	exe, script := r.ResolveExecutable()

	var args []string
	if script != "" {
		args = append(args, script)
	}
	args = append(args, string(req.TestType))
	if len(req.FilePaths) == 1 {
		args = append(args, req.FilePaths[0])
	} else {
		args = append(args, multipleFlag, strings.Join(req.FilePaths, pathSeparator))
	}

	env := os.Environ()
	if r.app.Packaged {
		env = append(env, noLogEnv)
	}

	return domain.Invocation{Executable: exe, Script: script, Args: args, Env: env}, nil
}

// Check is the pre-flight: the executable (and script) must exist.
func (r *Runner) Check() error {
	exe, script := r.ResolveExecutable()
	if _, err := exec.LookPath(exe); err != nil {
		return &domain.CollaboratorError{Kind: domain.ErrorComponentNotFound, ExitCode: -1, Err: err}
	}
	if script != "" {
		if _, err := os.Stat(script); err != nil {
			return &domain.CollaboratorError{Kind: domain.ErrorComponentNotFound, ExitCode: -1, Err: err}
		}
	}
	return nil
}

// Run invokes the collaborator and waits for it to exit. On exit 0 the
// trimmed stdout is returned; otherwise a *CollaboratorError.
func (r *Runner) Run(ctx context.Context, req domain.Request) (domain.RawResult, error) {
	inv, err := r.Invocation(req)
	if err != nil {
		return domain.RawResult{}, err
	}
	log := r.log.WithFields(logrus.Fields{
		"test_type": req.TestType,
		"files":     len(req.FilePaths),
	})

	if err := r.Check(); err != nil {
		log.WithError(err).Error("collaborator not found")
		return domain.RawResult{ExitCode: -1}, err
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Env = inv.Env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := domain.RawResult{
		Stdout:     strings.TrimSpace(stdout.String()),
		Stderr:     stderr.String(),
		DurationMS: time.Since(start).Milliseconds(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case errors.Is(runErr, fs.ErrNotExist):
			res.ExitCode = -1
			log.WithError(runErr).Error("collaborator could not be started")
			return res, &domain.CollaboratorError{Kind: domain.ErrorComponentNotFound, ExitCode: -1, Err: runErr}
		default:
			res.ExitCode = -1
		}

		cerr := &domain.CollaboratorError{
			Kind:     domain.ClassifyWith(r.table, res.Stderr),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Stdout:   res.Stdout,
			Err:      runErr,
		}
		entry := log.WithFields(logrus.Fields{
			"exit_code":     res.ExitCode,
			"duration_ms":   res.DurationMS,
			"stderr_length": len(res.Stderr),
			"kind":          cerr.Kind,
		})
		if !r.app.Packaged {
			entry = entry.WithField("stderr", res.Stderr)
		}
		entry.Error("collaborator failed")
		return res, cerr
	}

	log.WithFields(logrus.Fields{
		"exit_code":     0,
		"duration_ms":   res.DurationMS,
		"stdout_length": len(res.Stdout),
		"stderr_length": len(res.Stderr),
	}).Info("collaborator finished")
	return res, nil
}
