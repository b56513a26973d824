package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/opensase/upo/pkg/intent/ast"
	"github.com/opensase/upo/pkg/telemetry/logging"
)

// GitConfig configures a git-backed intent source.
type GitConfig struct {
	// Repository is the clone URL.
	Repository string

	// Branch to track. Default: "main".
	Branch string

	// Path is the intent file or directory inside the repository.
	// Default: "." (the repository root).
	Path string

	// LocalPath is where the working copy lives. Default: a directory
	// under the OS temp dir.
	LocalPath string

	// Depth enables shallow clones when > 0.
	Depth int

	// Timeout bounds clone and fetch operations. Default: 60 seconds.
	Timeout time.Duration

	// Username and Token authenticate over HTTPS. Tokens go in Token with
	// any non-empty Username; both empty means anonymous access.
	Username string
	Token    string
}

// GitSource keeps a local clone of an intent repository and loads policies
// from it. Sync is pull-based: callers decide when to refresh, typically on a
// schedule or before each compile.
type GitSource struct {
	config GitConfig
	loader *Loader
	logger *logging.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource creates a git-backed intent source.
func NewGitSource(cfg GitConfig, logger *logging.Logger) (*GitSource, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Path == "" {
		cfg.Path = "."
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "upo-intent")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &GitSource{
		config: cfg,
		loader: NewLoader(),
		logger: logger,
	}, nil
}

// Sync brings the local clone up to date, cloning on first use. It returns
// the HEAD commit hash after syncing.
func (g *GitSource) Sync(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	if g.repo == nil {
		if err := g.open(ctx); err != nil {
			return "", err
		}
	} else if err := g.pull(ctx); err != nil {
		return "", err
	}

	head, err := g.repo.Head()
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Load returns the policies at the configured path in the working copy.
// Call Sync first; Load reads whatever is on disk.
func (g *GitSource) Load() ([]*ast.IntentPolicy, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return nil, fmt.Errorf("git source not synced")
	}
	return g.loader.Load(filepath.Join(g.config.LocalPath, g.config.Path))
}

func (g *GitSource) open(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(g.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(g.config.LocalPath)
		if err != nil {
			return fmt.Errorf("open existing clone: %w", err)
		}
		g.repo = repo
		return g.pull(ctx)
	}

	if err := os.MkdirAll(g.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("create clone directory: %w", err)
	}

	opts := &gogit.CloneOptions{
		URL:           g.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Depth:         g.config.Depth,
		Auth:          g.auth(),
	}

	repo, err := gogit.PlainCloneContext(ctx, g.config.LocalPath, false, opts)
	if err != nil {
		return fmt.Errorf("clone %s: %w", g.config.Repository, err)
	}
	g.repo = repo
	g.logger.Info("intent repository cloned",
		"repository", g.config.Repository,
		"branch", g.config.Branch)
	return nil
}

func (g *GitSource) pull(ctx context.Context) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	err = wt.PullContext(ctx, &gogit.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Auth:          g.auth(),
	})
	if err == gogit.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull %s: %w", g.config.Repository, err)
	}
	g.logger.Info("intent repository updated", "branch", g.config.Branch)
	return nil
}

func (g *GitSource) auth() *http.BasicAuth {
	if g.config.Token == "" {
		return nil
	}
	username := g.config.Username
	if username == "" {
		// Token auth over HTTPS needs any non-empty username.
		username = "git"
	}
	return &http.BasicAuth{Username: username, Password: g.config.Token}
}
