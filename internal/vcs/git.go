// Package vcs synchronizes the notes directory with a git remote by driving
// the git binary.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultBranch = "main"

const gitignore = "*.tmp\n.DS_Store\n.notegraph-tmp-*\n"

// Git runs git commands inside Dir.
type Git struct {
	Dir    string
	Remote string // remote URL for "origin"; empty disables pull/push
	Binary string

	// Optional commit identity, passed with -c so no global config is needed.
	UserName  string
	UserEmail string

	Logger *slog.Logger
}

// Result reports what a Sync did.
type Result struct {
	Committed bool `json:"committed"`
	Pulled    bool `json:"pulled"` // HEAD moved because of the pull
	Pushed    bool `json:"pushed"`
}

func (g *Git) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	var pre []string
	if g.UserName != "" {
		pre = append(pre, "-c", "user.name="+g.UserName)
	}
	if g.UserEmail != "" {
		pre = append(pre, "-c", "user.email="+g.UserEmail)
	}
	cmd := exec.CommandContext(ctx, bin, append(pre, args...)...)
	cmd.Dir = g.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("vcs: git %s: %w: %s", args[0], err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Init makes Dir a repository if it is not one yet and configures origin.
func (g *Git) Init(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(g.Dir, ".git")); errors.Is(err, os.ErrNotExist) {
		if _, err := g.run(ctx, "init", "-b", defaultBranch); err != nil {
			return err
		}
		ignore := filepath.Join(g.Dir, ".gitignore")
		if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(ignore, []byte(gitignore), 0o644); err != nil {
				return fmt.Errorf("vcs: write .gitignore: %w", err)
			}
		}
		if _, err := g.run(ctx, "add", ".gitignore"); err != nil {
			return err
		}
		if _, err := g.run(ctx, "commit", "-m", "Initial commit"); err != nil {
			return err
		}
		g.logger().Info("vcs: initialized repository", slog.String("dir", g.Dir))
	}

	if g.Remote == "" {
		return nil
	}
	remotes, err := g.run(ctx, "remote")
	if err != nil {
		return err
	}
	for _, r := range strings.Fields(remotes) {
		if r == "origin" {
			return nil
		}
	}
	_, err = g.run(ctx, "remote", "add", "origin", g.Remote)
	return err
}

// Commit stages everything (including deletions) and commits. It reports
// false when there was nothing to commit.
func (g *Git) Commit(ctx context.Context, message string) (bool, error) {
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return false, err
	}
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if status == "" {
		return false, nil
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

func (g *Git) branch(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (g *Git) head(ctx context.Context) string {
	h, _ := g.run(ctx, "rev-parse", "HEAD")
	return h
}

// Pull merges origin's copy of the current branch. It reports whether HEAD
// moved. A remote without the branch yet is not an error.
func (g *Git) Pull(ctx context.Context) (bool, error) {
	branch, err := g.branch(ctx)
	if err != nil {
		return false, err
	}
	before := g.head(ctx)
	_, err = g.run(ctx, "pull", "--no-rebase", "--no-edit", "--allow-unrelated-histories", "origin", branch)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "couldn't find remote ref") {
			return false, nil
		}
		return false, err
	}
	return g.head(ctx) != before, nil
}

// Push pushes the current branch to origin and sets upstream.
func (g *Git) Push(ctx context.Context) error {
	branch, err := g.branch(ctx)
	if err != nil {
		return err
	}
	_, err = g.run(ctx, "push", "-u", "origin", branch)
	return err
}

// Sync commits local changes, pulls, then pushes. Local changes are
// committed before the pull so they cannot be overwritten; a failed pull
// still pushes whatever was committed.
func (g *Git) Sync(ctx context.Context, message string) (Result, error) {
	var res Result
	if err := g.Init(ctx); err != nil {
		return res, err
	}

	committed, err := g.Commit(ctx, message)
	if err != nil {
		return res, err
	}
	res.Committed = committed

	if g.Remote == "" {
		return res, nil
	}

	pulled, pullErr := g.Pull(ctx)
	res.Pulled = pulled
	if pullErr != nil {
		g.logger().Warn("vcs: pull failed", slog.String("error", pullErr.Error()))
		if !committed {
			return res, pullErr
		}
	}

	if err := g.Push(ctx); err != nil {
		return res, errors.Join(pullErr, err)
	}
	res.Pushed = true
	return res, pullErr
}
