package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v66/github"
)

// CommentPoster is an optional capability a platform Adapter may satisfy
// beyond the narrow Adapter contract: posting a tracking comment back
// onto the linked platform issue once an experiment completes. Only the
// github adapter implements it in this codebase — gitlab/gitee/gitcode
// stay issue-read-only.
type CommentPoster interface {
	PostComment(ctx context.Context, repoSlug, issueID, body string) error
}

// githubAppAdapter wraps the shared HMAC webhook-verification adapter
// with an optional GitHub App installation client, used only for posting
// a tracking comment — the narrow Adapter contract never needs it.
//
// Grounded on the teacher's internal/githubapp/client.go (App.InstallationClient's
// ghinstallation.New + github.NewClient pairing), adapted from a
// webhook-receiving GitHub App to an issue-commenting collaborator
// attached to the Platform-Issue Adapter.
type githubAppAdapter struct {
	hmacSHA256Adapter
	client *github.Client
}

// NewGitHubApp returns a github adapter additionally able to post
// tracking comments, authenticated as a GitHub App installation.
func NewGitHubApp(apiBaseURL, webhookSecret string, appID, installationID int64, privateKeyPEM []byte) (Adapter, error) {
	tr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("platform: github app transport: %w", err)
	}
	client := github.NewClient(&http.Client{Transport: tr})
	return githubAppAdapter{
		hmacSHA256Adapter: hmacSHA256Adapter{tag: "github", apiBaseURL: apiBaseURL, secret: webhookSecret},
		client:            client,
	}, nil
}

// PostComment posts body as a new comment on repoSlug's issue number
// issueID, using the installation-authenticated client.
func (a githubAppAdapter) PostComment(ctx context.Context, repoSlug, issueID, body string) error {
	if a.client == nil {
		return fmt.Errorf("platform: github adapter has no attached client")
	}
	owner, repo, ok := strings.Cut(repoSlug, "/")
	if !ok {
		return fmt.Errorf("platform: malformed repo slug %q", repoSlug)
	}
	number, err := strconv.Atoi(issueID)
	if err != nil {
		return fmt.Errorf("platform: malformed issue id %q: %w", issueID, err)
	}
	_, _, err = a.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: &body})
	if err != nil {
		return fmt.Errorf("platform: post comment on %s#%d: %w", repoSlug, number, err)
	}
	return nil
}
