package backend

// Backend abstracts access to repository data.
//
// The git package ships a go-git implementation; this package provides one
// that shells out to the git executable. Callers only see this interface.
type Backend interface {
	RepoPath() string
	// StartLogStream walks every commit reachable from tips, newest first,
	// each commit exactly once.
	StartLogStream(tips []string) (LogStream, error)

	HeadState() (hash string, headName string, ok bool, err error)
	ListRefs() ([]Ref, error)
	// ReadCommit resolves a full or abbreviated hash.
	ReadCommit(hash string) (*Commit, error)

	// ReviewDiffText returns the unified diff from baseHash to tipHash.
	ReviewDiffText(baseHash string, tipHash string) (string, error)
	LocalChangesStatus() (LocalChanges, error)
}

type LogStream interface {
	Next() (*Commit, error)
	Close() error
}
