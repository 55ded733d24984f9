package git

import (
	"container/heap"
	"errors"
	"io"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
)

// commitQueue is a max-heap on committer time; ties break on hash so the
// walk order is deterministic.
type commitQueue []*object.Commit

func (q commitQueue) Len() int { return len(q) }
func (q commitQueue) Less(i, j int) bool {
	ti, tj := q[i].Committer.When, q[j].Committer.When
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return q[i].Hash.String() < q[j].Hash.String()
}
func (q commitQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *commitQueue) Push(x any)   { *q = append(*q, x.(*object.Commit)) }
func (q *commitQueue) Pop() any {
	old := *q
	c := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return c
}

// nativeLogStream merges the histories of several tips, newest committer
// time first, visiting each commit once.
type nativeLogStream struct {
	n     *nativeBackend
	queue commitQueue
	seen  map[plumbing.Hash]struct{}
}

func (n *nativeBackend) StartLogStream(tips []string) (gitbackend.LogStream, error) {
	s := &nativeLogStream{n: n, seen: make(map[plumbing.Hash]struct{})}
	for _, tip := range tips {
		c, err := n.commitObject(tip)
		if err != nil {
			return nil, err
		}
		s.push(c)
	}
	return s, nil
}

func (s *nativeLogStream) push(c *object.Commit) {
	if _, ok := s.seen[c.Hash]; ok {
		return
	}
	s.seen[c.Hash] = struct{}{}
	heap.Push(&s.queue, c)
}

func (s *nativeLogStream) Next() (*gitbackend.Commit, error) {
	if s.queue.Len() == 0 {
		return nil, io.EOF
	}
	c := heap.Pop(&s.queue).(*object.Commit)
	for _, ph := range c.ParentHashes {
		if _, ok := s.seen[ph]; ok {
			continue
		}
		parent, err := s.n.repo.CommitObject(ph)
		if err != nil {
			// Shallow clones end in parents that are not in the store.
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				slog.Debug("log stream: missing parent", slog.String("hash", ph.String()))
				s.seen[ph] = struct{}{}
				continue
			}
			return nil, err
		}
		s.push(parent)
	}
	return convertCommit(c), nil
}

func (s *nativeLogStream) Close() error {
	s.queue = nil
	s.seen = nil
	return nil
}
