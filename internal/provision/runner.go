package provision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Runner executes the bootstrap script on the remote host over an existing
// SSH connection.
type Runner struct {
	client *ssh.Client
	log    *slog.Logger
}

// NewRunner wraps an established SSH connection.
func NewRunner(client *ssh.Client, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{client: client, log: log}
}

// RunScript runs script through the remote shell, streaming its output
// into the log line by line. Cancellation closes the session, which kills
// the remote shell.
func (r *Runner) RunScript(ctx context.Context, script string) error {
	session, err := r.client.NewSession()
	if err != nil {
		return fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	if err := session.Start("sh -s"); err != nil {
		return fmt.Errorf("start remote shell: %w", err)
	}

	if _, err := io.WriteString(stdin, script); err != nil {
		return fmt.Errorf("send script: %w", err)
	}
	stdin.Close()

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		r.streamLines(stdout, slog.LevelInfo)
	}()
	go func() {
		defer streams.Done()
		r.streamLines(stderr, slog.LevelWarn)
	}()

	done := make(chan error, 1)
	go func() {
		streams.Wait()
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("bootstrap script: %w", err)
		}
		return nil
	}
}

func (r *Runner) streamLines(src io.Reader, level slog.Level) {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		r.log.Log(context.Background(), level, "remote", "line", scanner.Text())
	}
}
