package backend

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// Fields are newline separated; the message (%B) comes last so it may
// contain newlines itself.
const logFormat = "%H%n%P%n%an%n%ae%n%aI%n%cn%n%ce%n%cI%n%B"

const logFieldCount = 9

func (g *gitCLI) StartLogStream(tips []string) (LogStream, error) {
	if len(tips) == 0 {
		return emptyLogStream{}, nil
	}
	args := []string{"log", "--date-order", "-z", "--format=" + logFormat}
	for _, tip := range tips {
		if tip == "" || strings.HasPrefix(tip, "-") {
			return nil, fmt.Errorf("invalid log tip %q", tip)
		}
		args = append(args, tip)
	}
	args = append(args, "--")
	cmd, err := g.command(args...)
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	return &gitLogStream{
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 64*1024),
		stderr: &stderr,
	}, nil
}

type emptyLogStream struct{}

func (emptyLogStream) Next() (*Commit, error) { return nil, io.EOF }
func (emptyLogStream) Close() error           { return nil }

type gitLogStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *bytes.Buffer
	err    error
}

func (s *gitLogStream) Next() (*Commit, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, err := s.reader.ReadBytes(0)
	switch {
	case errors.Is(err, io.EOF):
		s.err = io.EOF
		if waitErr := s.wait(); waitErr != nil {
			s.err = waitErr
			return nil, waitErr
		}
		if len(bytes.TrimSpace(rec)) == 0 {
			return nil, io.EOF
		}
	case err != nil:
		s.err = err
		return nil, err
	}
	commit, err := parseGitLogRecord(bytes.TrimSuffix(rec, []byte{0}))
	if err != nil {
		s.err = err
		return nil, err
	}
	return commit, nil
}

func (s *gitLogStream) wait() error {
	if s.cmd == nil {
		return nil
	}
	cmd := s.cmd
	s.cmd = nil
	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
			return fmt.Errorf("git log: %v: %s", err, msg)
		}
		return fmt.Errorf("git log: %w", err)
	}
	return nil
}

// Close stops git if it is still producing output.
func (s *gitLogStream) Close() error {
	if s.err == nil {
		s.err = io.EOF
	}
	if s.cmd == nil {
		return nil
	}
	cmd := s.cmd
	s.cmd = nil
	_ = s.stdout.Close()
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = cmd.Wait()
	return nil
}

func parseGitLogRecord(rec []byte) (*Commit, error) {
	parts := bytes.SplitN(rec, []byte("\n"), logFieldCount)
	if len(parts) < logFieldCount {
		return nil, fmt.Errorf("unexpected git log record with %d fields", len(parts))
	}
	authorWhen, err := time.Parse(time.RFC3339, string(parts[4]))
	if err != nil {
		return nil, fmt.Errorf("parse author date: %w", err)
	}
	committerWhen, err := time.Parse(time.RFC3339, string(parts[7]))
	if err != nil {
		return nil, fmt.Errorf("parse committer date: %w", err)
	}
	return &Commit{
		Hash:         string(parts[0]),
		ParentHashes: strings.Fields(string(parts[1])),
		Author: Signature{
			Name:  string(parts[2]),
			Email: string(parts[3]),
			When:  authorWhen,
		},
		Committer: Signature{
			Name:  string(parts[5]),
			Email: string(parts[6]),
			When:  committerWhen,
		},
		Message: string(parts[8]),
	}, nil
}
