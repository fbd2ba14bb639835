package processor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"time"
)

// Launcher starts a job and hands back a handle the run loop can poll.
type Launcher interface {
	Launch(ctx context.Context, job Job) (Process, error)
}

// Process is a started job. Result is only meaningful once Running reports false.
type Process interface {
	Running() bool
	Result() Result
}

// ShellLauncher runs each job through the platform shell.
type ShellLauncher struct {
	// WaitDelay bounds how long Wait blocks on pipes still held open after
	// the job's process group was killed.
	WaitDelay time.Duration
}

func (l ShellLauncher) Launch(ctx context.Context, job Job) (Process, error) {
	var shell string
	var args []string

	switch runtime.GOOS {
	case "windows":
		shell = "cmd"
		args = []string{"/C", job.Command}
	default:
		shell = "sh"
		args = []string{"-c", job.Command}
	}

	cmd := exec.CommandContext(ctx, shell, args...)
	setProcessGroup(cmd)
	cmd.WaitDelay = l.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	p := &shellProcess{
		job:  job,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	p.started = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go p.wait()

	return p, nil
}

type shellProcess struct {
	job     Job
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	started time.Time
	done    chan struct{}
	result  Result
}

func (p *shellProcess) wait() {
	err := p.cmd.Wait()

	res := Result{
		Job:      p.job,
		Success:  err == nil,
		Stdout:   p.stdout.String(),
		Stderr:   p.stderr.String(),
		Duration: time.Since(p.started),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		res.ExitCode = -1
	}

	p.result = res
	close(p.done)
}

func (p *shellProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *shellProcess) Result() Result {
	<-p.done
	return p.result
}
