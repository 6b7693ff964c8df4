package gitfetch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/worker/internal/gitfetch",
)

const (
	resolveTimeout  = time.Second * 45
	cloneTimeout    = time.Second * 90
	checkoutTimeout = time.Second * 30
)

// ErrUnresolvableRef is returned when the remote did not advertise a usable
// HEAD commit.
var ErrUnresolvableRef = errors.New("could not resolve HEAD for repository")

var shaPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

type CloneError struct {
	Err error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone repository: %s", e.Err)
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

type CheckoutError struct {
	Err error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("failed to checkout commit: %s", e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

//go:generate mockgen -destination ./mock/mock.go -package mock . Fetcher

type Fetcher interface {
	// ResolveHead returns the commit the remote's HEAD points at without
	// downloading any objects.
	ResolveHead(ctx context.Context, repoURL string) (string, error)
	// FetchAt materializes the repository at commitSHA inside dir. The clone
	// is shallow and tagless, then the resolved commit is checked out so the
	// evaluated tree matches the snapshot even if the branch moved since
	// ResolveHead.
	FetchAt(ctx context.Context, repoURL, commitSHA, dir string) error
}

// Ensure GitFetcher implements Fetcher interface.
var _ Fetcher = (*GitFetcher)(nil)

type GitFetcher struct{}

func NewGitFetcher() *GitFetcher {
	return &GitFetcher{}
}

func (*GitFetcher) ResolveHead(ctx context.Context, repoURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "GitFetcher.ResolveHead", trace.WithAttributes(
		attribute.String("repo.url", repoURL),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list remote refs")
		return "", fmt.Errorf("%w: %w", ErrUnresolvableRef, err)
	}

	var head string
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && !ref.Hash().IsZero() {
			head = ref.Hash().String()
			break
		}
	}
	if !shaPattern.MatchString(head) {
		span.RecordError(ErrUnresolvableRef)
		span.SetStatus(codes.Error, "remote did not advertise HEAD")
		return "", ErrUnresolvableRef
	}

	span.SetAttributes(attribute.String("commitSha", head))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "resolved HEAD")
	return head, nil
}

func (*GitFetcher) FetchAt(ctx context.Context, repoURL, commitSHA, dir string) error {
	ctx, span := tracer.Start(ctx, "GitFetcher.FetchAt", trace.WithAttributes(
		attribute.String("repo.url", repoURL),
		attribute.String("commitSha", commitSHA),
		attribute.String("dir", dir),
	))
	defer span.End()

	cloneCtx, cancelClone := context.WithTimeout(ctx, cloneTimeout)
	defer cancelClone()

	repo, err := git.PlainCloneContext(cloneCtx, dir, false, &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		Tags:         git.NoTags,
		SingleBranch: true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clone repo")
		return &CloneError{Err: err}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open worktree")
		return &CheckoutError{Err: err}
	}

	checkoutCtx, cancelCheckout := context.WithTimeout(ctx, checkoutTimeout)
	defer cancelCheckout()

	// go-git checkouts take no context. On timeout the goroutine is
	// abandoned; the buffered channel lets it finish and exit on its own,
	// and the caller deletes the workspace either way.
	done := make(chan error, 1)
	go func() {
		done <- worktree.Checkout(&git.CheckoutOptions{
			Hash: plumbing.NewHash(commitSHA),
		})
	}()

	select {
	case <-checkoutCtx.Done():
		span.RecordError(checkoutCtx.Err())
		span.SetStatus(codes.Error, "checkout timed out")
		return &CheckoutError{Err: checkoutCtx.Err()}
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to checkout commit")
			return &CheckoutError{Err: err}
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched repo at commit")
	return nil
}
