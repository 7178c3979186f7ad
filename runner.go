package unwrapr

/* Process execution: spawning a compiled pipeline and judging the exits. */

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// run executes a compiled pipeline inside workDir and returns the terminal
// stage's captured stdout (list mode output; empty otherwise). All extraction
// side effects land in workDir, so the caller can treat it as disposable
// until the pipeline succeeds.
func (u *Unwrapr) run(ctx context.Context, pipe *Pipeline, workDir string) ([]byte, error) {
	stages := pipe.Stages

	if pipe.Materialize {
		// The terminal tool refuses pipes. Drain the filter chain into a
		// temp file, then hand the tool a real path.
		temp, err := u.materialize(ctx, pipe, workDir)
		if err != nil {
			return nil, err
		}
		defer os.Remove(temp)

		last := stages[len(stages)-1]
		last.Argv = append(append([]string{}, last.Argv...), temp)
		stages = []Stage{last}
	}

	var captured bytes.Buffer

	var sink io.Writer = io.Discard

	switch {
	case pipe.WriteTo != "":
		file, err := os.OpenFile(filepath.Join(workDir, pipe.WriteTo),
			os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:mnd
		if err != nil {
			return nil, fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()

		sink = file
	case pipe.Mode != ModeExtract:
		sink = &captured
	}

	if err := u.runChain(ctx, pipe, stages, workDir, sink, pipe.NonFatalExit); err != nil {
		return nil, err
	}

	return captured.Bytes(), nil
}

// materialize runs the pipeline's filter stages into a fresh temp file and
// returns its path. The caller removes the file.
func (u *Unwrapr) materialize(ctx context.Context, pipe *Pipeline, workDir string) (string, error) {
	temp, err := os.CreateTemp(u.config.TmpDir, "unwrapr-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer temp.Close()

	filters := pipe.Stages[:len(pipe.Stages)-1]
	if err := u.runChain(ctx, pipe, filters, workDir, temp, nil); err != nil {
		os.Remove(temp.Name())
		return "", err
	}

	return temp.Name(), nil
}

// spawned pairs a started process with the stage that produced it.
type spawned struct {
	stage  Stage
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

// runChain wires the stages together stdin to stdout, starts them all, and
// waits for every one. Native stages become in-process readers spliced into
// the chain. nonFatal, when set, tolerates specific exit codes of the final
// process stage.
//
//nolint:cyclop,funlen
func (u *Unwrapr) runChain(
	ctx context.Context,
	pipe *Pipeline,
	stages []Stage,
	workDir string,
	sink io.Writer,
	nonFatal func(code int) bool,
) error {
	var src io.Reader

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	lastProc := -1

	for i := range stages {
		if stages[i].Native == nil {
			lastProc = i
		}
	}

	procs := make([]spawned, 0, len(stages))

	for idx, stage := range stages {
		if stage.Source == sourceArchive {
			file, err := os.Open(pipe.Archive)
			if err != nil {
				return fmt.Errorf("os.Open: %w", err)
			}

			closers = append(closers, file)
			src = file
		}

		if stage.Native != nil {
			// Constructors read the stream header right here, so every
			// upstream process is already running by this point.
			reader, err := stage.Native(src)
			if err != nil {
				return u.stageError(pipe, stage, -1, "", err)
			}

			src = reader

			continue
		}

		u.config.Logger.Debugf("Running: %s (in %s)", strings.Join(stage.Argv, " "), workDir)

		cmd := exec.CommandContext(ctx, stage.Path, stage.Argv[1:]...)
		cmd.Dir = workDir

		if stage.Source != sourceNone {
			cmd.Stdin = src
		}

		stderr := &bytes.Buffer{}
		cmd.Stderr = stderr

		if idx == lastProc && lastProc == len(stages)-1 {
			cmd.Stdout = sink
		} else {
			stdout, err := cmd.StdoutPipe()
			if err != nil {
				return fmt.Errorf("cmd.StdoutPipe: %w", err)
			}

			src = stdout
		}

		// Start now, not after the loop: a native stage downstream reads
		// this process's output while it is being constructed.
		if err := cmd.Start(); err != nil {
			return u.stageError(pipe, stage, -1, "", err)
		}

		procs = append(procs, spawned{stage: stage, cmd: cmd, stderr: stderr})
	}

	// Trailing native filters: pump the last process's output through them
	// into the sink ourselves.
	if lastProc < len(stages)-1 && src != nil {
		if _, err := io.Copy(sink, src); err != nil {
			return u.stageError(pipe, stages[len(stages)-1], -1, "", err)
		}
	}

	// Wait on every process; keep the most downstream failure, since an
	// upstream filter dying of a broken pipe is a symptom, not the cause.
	var failure error

	for idx, proc := range procs {
		err := proc.cmd.Wait()
		if err == nil {
			continue
		}

		code := proc.cmd.ProcessState.ExitCode()

		if idx == len(procs)-1 && nonFatal != nil && nonFatal(code) {
			u.config.Logger.Debugf("%s exited %d; treating as a warning: %s",
				proc.stage.Tool, code, strings.TrimSpace(proc.stderr.String()))

			continue
		}

		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}

		failure = u.stageError(pipe, proc.stage, code, proc.stderr.String(), err)
	}

	return failure
}

// stageError wraps a stage failure in a ToolError carrying everything the
// caller needs to explain it: the command, the exit code, the captured
// stderr, and any recognizable cause (wrong password, unsupported method).
func (u *Unwrapr) stageError(pipe *Pipeline, stage Stage, code int, stderr string, cause error) error {
	errs := []error{}

	if cause != nil {
		errs = append(errs, cause)
	}

	if sub := classifyStderr(stderr); sub != nil {
		errs = append(errs, sub)
	}

	return &ToolError{
		Errs:     errs,
		Stage:    stage.Desc,
		Command:  strings.Join(stage.Argv, " "),
		ExitCode: code,
		Stderr:   strings.TrimSpace(stderr),
		FilePath: pipe.Archive,
	}
}
