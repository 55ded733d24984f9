package git

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
)

type scanSession struct {
	tips []string

	logStream gitbackend.LogStream

	// buffered holds the commit read ahead by hasMore so next keeps the
	// stream order.
	buffered  *gitbackend.Commit
	exhausted bool
	returned  int
}

func (s *Service) ensureScanSessionLocked(tips []string) error {
	if s.scan != nil && slices.Equal(s.scan.tips, tips) {
		return nil
	}
	return s.resetScanLocked(tips)
}

func (s *Service) resetScanLocked(tips []string) error {
	s.closeScanLocked()
	if s.backend == nil || s.backend.RepoPath() == "" {
		return errors.New("repository root not set")
	}
	stream, err := s.backend.StartLogStream(tips)
	if err != nil {
		return fmt.Errorf("read commits: %w", err)
	}
	s.scan = &scanSession{tips: slices.Clone(tips), logStream: stream}
	slog.Debug("scan session initialized", slog.Int("tips", len(tips)))
	return nil
}

func (s *Service) closeScanLocked() {
	if s.scan != nil {
		s.scan.close()
		s.scan = nil
	}
}

func (s *scanSession) close() {
	if s.logStream != nil {
		if err := s.logStream.Close(); err != nil {
			slog.Debug("log stream close", slog.Any("error", err))
		}
	}
	s.logStream = nil
	s.buffered = nil
	s.exhausted = true
}

func (s *scanSession) hasMore() (bool, error) {
	if s.exhausted {
		return false, nil
	}
	if s.buffered != nil {
		return true, nil
	}
	commit, err := s.logStream.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.exhausted = true
			return false, nil
		}
		return false, fmt.Errorf("iterate commits: %w", err)
	}
	s.buffered = commit
	return true, nil
}

func (s *scanSession) next() (*gitbackend.Commit, error) {
	if s.exhausted {
		return nil, io.EOF
	}
	if s.buffered != nil {
		commit := s.buffered
		s.buffered = nil
		s.returned++
		return commit, nil
	}
	commit, err := s.logStream.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.exhausted = true
		}
		return nil, err
	}
	s.returned++
	return commit, nil
}

func (s *scanSession) discard(count int) error {
	for range count {
		if _, err := s.next(); err != nil {
			return err
		}
	}
	return nil
}
