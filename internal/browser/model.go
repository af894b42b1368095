// Package browser implements the directory-browsing state engine: a
// cached remote listing reconciled against active compute sessions,
// kept fresh by a backoff poller, with a chunked upload pipeline.
package browser

import (
	"context"
	"sync"

	"github.com/Jake0826/filebrowser/internal/backoff"
	"github.com/Jake0826/filebrowser/internal/contents"
	"github.com/Jake0826/filebrowser/internal/logging"
	"github.com/Jake0826/filebrowser/internal/metrics"
	"github.com/Jake0826/filebrowser/internal/poller"
	"github.com/Jake0826/filebrowser/internal/sessions"
	"github.com/Jake0826/filebrowser/internal/signals"
	"github.com/Jake0826/filebrowser/internal/statedb"
)

// ContentService is the remote contents API the model consumes.
type ContentService interface {
	Get(ctx context.Context, path string, opts contents.GetOptions) (*contents.Entry, error)
	Save(ctx context.Context, path string, save contents.SaveRequest) (*contents.Entry, error)
	Delete(ctx context.Context, path string) error
	DownloadURL(path string) string
	SupportsChunked(path string) bool
}

// SessionRegistry supplies the active compute-session snapshot.
type SessionRegistry interface {
	Running(ctx context.Context) ([]sessions.Session, error)
}

// Prompter supplies user decisions for upload confirmations. A nil
// prompter confirms everything.
type Prompter interface {
	ConfirmLargeFile(ctx context.Context, name string, size int64) (bool, error)
	ConfirmOverwrite(ctx context.Context, name string) (bool, error)
}

// PathChange is emitted when the current directory actually changes.
type PathChange struct {
	Old string
	New string
}

// FileChange is emitted for a relevant external entry change.
type FileChange struct {
	Old *contents.Entry
	New *contents.Entry
}

// Upload describes one tracked in-flight upload.
type Upload struct {
	ID       string // unique per upload attempt
	Path     string
	Progress float64 // fraction in [0,1)
	Chunk    int     // last completed chunk index, 0 before any
	Done     bool
}

// UploadChange is emitted as an upload progresses. Name is one of
// "start", "update", "finish", "failure".
type UploadChange struct {
	Name string
	Old  *Upload
	New  *Upload
}

// Config holds model construction parameters.
type Config struct {
	Contents ContentService
	Registry SessionRegistry // optional
	Prompter Prompter        // optional
	Store    statedb.Store   // optional

	// Poll grows the automatic refresh interval; zero means DefaultPolicy.
	Poll backoff.Policy
	// Visible gates the poller's standby branch.
	Visible func() bool
	// AutoPoll starts the refresh loop immediately.
	AutoPoll bool
}

type pendingFetch struct {
	key  string
	done chan struct{}
	err  error
}

// Model orchestrates navigation, polling, uploads, and reconciliation.
type Model struct {
	contents ContentService
	registry SessionRegistry
	prompter Prompter
	store    statedb.Store
	poll     *poller.Poller

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	disposed    bool
	path        string
	entries     []contents.Entry
	sessionList []sessions.Session
	snapshot    []sessions.Session // latest registry snapshot
	uploads     map[string]*Upload
	pending     *pendingFetch
	restoreKey  string

	restored     chan struct{}
	restoredOnce sync.Once

	// Signals. Handlers run synchronously, in connect order, on the
	// goroutine that triggered the emission.
	PathChanged       *signals.Signal[PathChange]
	Refreshed         *signals.Signal[struct{}]
	FileChanged       *signals.Signal[FileChange]
	UploadChanged     *signals.Signal[UploadChange]
	ConnectionFailure *signals.Signal[error]
}

// New creates a model. The poller is created but only started when
// cfg.AutoPoll is set; Poll() starts it later otherwise.
func New(cfg Config) (*Model, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		contents: cfg.Contents,
		registry: cfg.Registry,
		prompter: cfg.Prompter,
		store:    cfg.Store,
		ctx:      ctx,
		cancel:   cancel,
		uploads:  make(map[string]*Upload),
		restored: make(chan struct{}),

		PathChanged:       signals.New[PathChange](),
		Refreshed:         signals.New[struct{}](),
		FileChanged:       signals.New[FileChange](),
		UploadChanged:     signals.New[UploadChange](),
		ConnectionFailure: signals.New[error](),
	}

	policy := cfg.Poll
	if policy.Base <= 0 {
		policy = backoff.DefaultPolicy()
	}
	p, err := poller.New(poller.Config{
		Policy:  policy,
		Visible: cfg.Visible,
		Tick: func(ctx context.Context) {
			// Errors already surface through ConnectionFailure.
			_ = m.ChangeDirectory(ctx, ".")
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}
	m.poll = p

	if cfg.AutoPoll {
		if err := p.Start(ctx); err != nil {
			cancel()
			return nil, err
		}
	}
	return m, nil
}

// Poll starts the automatic refresh loop.
func (m *Model) Poll() error {
	return m.poll.Start(m.ctx)
}

// Refresh forces one immediate fetch of the current path. With the
// poll loop running this goes through the poller, which also resets
// the interval to its base value; otherwise the fetch is issued
// directly. Failures surface through ConnectionFailure.
func (m *Model) Refresh() {
	if m.poll.State() == poller.Idle {
		go func() { _ = m.ChangeDirectory(m.ctx, ".") }()
		return
	}
	m.poll.Refresh()
}

// Path returns the current resolved directory path.
func (m *Model) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Entries returns a copy of the cached directory entries.
func (m *Model) Entries() []contents.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]contents.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Sessions returns a copy of the reconciled session list.
func (m *Model) Sessions() []sessions.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sessions.Session, len(m.sessionList))
	copy(out, m.sessionList)
	return out
}

// Uploads returns a copy of the tracked in-flight uploads.
func (m *Model) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Upload, 0, len(m.uploads))
	for _, u := range m.uploads {
		out = append(out, *u)
	}
	return out
}

// DownloadURL returns the direct download URL for path.
func (m *Model) DownloadURL(path string) string {
	return m.contents.DownloadURL(path)
}

// Delete removes the entry at path and refreshes the listing.
func (m *Model) Delete(ctx context.Context, path string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	if err := m.contents.Delete(ctx, path); err != nil {
		return err
	}
	return m.ChangeDirectory(ctx, ".")
}

// IsDisposed reports whether Dispose has been called.
func (m *Model) IsDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

func (m *Model) checkDisposed() error {
	if m.IsDisposed() {
		return ErrDisposed
	}
	return nil
}

// Dispose tears the model down: the poller stops, pending work is
// abandoned at its next suspension check, and every signal connection
// is cleared at once.
func (m *Model) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.uploads = make(map[string]*Upload)
	m.mu.Unlock()

	m.cancel()
	m.poll.Stop()
	metrics.SetUploadsInFlight(0)

	m.PathChanged.Clear()
	m.Refreshed.Clear()
	m.FileChanged.Clear()
	m.UploadChanged.Clear()
	m.ConnectionFailure.Clear()
}

// UpdateSessions installs a fresh registry snapshot and atomically
// re-reconciles it against the cached directory entries.
func (m *Model) UpdateSessions(snapshot []sessions.Session) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.snapshot = snapshot
	m.reconcileLocked()
	n := len(m.sessionList)
	m.mu.Unlock()

	metrics.SetSessionsRetained(n)
}

// reconcileLocked recomputes the retained session set. Caller holds mu.
func (m *Model) reconcileLocked() {
	listed := make(map[string]struct{}, len(m.entries))
	for _, e := range m.entries {
		listed[e.Path] = struct{}{}
	}
	m.sessionList = sessions.Reconcile(m.snapshot, listed)
}

// HandleChange processes one external entry-change notification. It is
// acted on only when the old or new path sits directly in the current
// directory: the model then schedules a non-blocking poll refresh,
// re-reconciles sessions, and emits FileChanged.
func (m *Model) HandleChange(ev contents.ChangeEvent) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	cur := m.path
	relevant := (ev.Old != nil && contents.ParentDir(ev.Old.Path) == cur) ||
		(ev.New != nil && contents.ParentDir(ev.New.Path) == cur)
	if !relevant {
		m.mu.Unlock()
		return
	}
	m.reconcileLocked()
	m.mu.Unlock()

	m.Refresh()
	m.FileChanged.Emit(FileChange{Old: ev.Old, New: ev.New})
}

// refreshSessions pulls a fresh snapshot from the registry, keeping the
// previous one when the registry is unreachable.
func (m *Model) refreshSessions(ctx context.Context) {
	if m.registry == nil {
		return
	}
	snapshot, err := m.registry.Running(ctx)
	if err != nil {
		logging.Debug("session snapshot unavailable", logging.Err(err))
		return
	}
	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()
}
