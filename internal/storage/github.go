package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// GitHub stores blobs as files of a repository through the contents API.
// Every write is a commit on the configured branch.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

// NewGitHub builds a contents API client for repoName ("owner/repo").
// apiURL overrides the public API endpoint when non-empty.
func NewGitHub(ctx context.Context, token, repoName, branch, apiURL string) (*GitHub, error) {
	owner, repo, ok := strings.Cut(repoName, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repo name %q must look like owner/repo", repoName)
	}

	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(httpClient)
	if apiURL != "" {
		base, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = base
	}

	return &GitHub{client: client, owner: owner, repo: repo, branch: branch}, nil
}

func (g *GitHub) Fetch(ctx context.Context, name string) ([]byte, error) {
	file, err := g.get(ctx, "fetch", name)
	if err != nil {
		return nil, err
	}
	// Files over 1 MB come back without inline content; read them as a
	// raw git blob by sha instead.
	if file.GetEncoding() == "none" {
		data, _, err := g.client.Git.GetBlobRaw(ctx, g.owner, g.repo, file.GetSHA())
		if err != nil {
			return nil, &RemoteError{Op: "fetch", Name: name, Err: err}
		}
		return data, nil
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, &RemoteError{Op: "fetch", Name: name, Err: err}
	}
	return []byte(content), nil
}

func (g *GitHub) Commit(ctx context.Context, name string, data []byte, message string) error {
	file, err := g.get(ctx, "commit", name)
	if err != nil {
		return err
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
		SHA:     github.String(file.GetSHA()),
	}
	if g.branch != "" {
		opts.Branch = github.String(g.branch)
	}
	_, resp, err := g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, name, opts)
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return ErrNotFound
		}
		return &RemoteError{Op: "commit", Name: name, Err: err}
	}
	return nil
}

func (g *GitHub) Create(ctx context.Context, name string, data []byte, message string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
	}
	if g.branch != "" {
		opts.Branch = github.String(g.branch)
	}
	_, resp, err := g.client.Repositories.CreateFile(ctx, g.owner, g.repo, name, opts)
	if err != nil {
		// The API answers 422 when the path exists and no sha was given.
		if statusOf(resp) == http.StatusUnprocessableEntity {
			return ErrExists
		}
		return &RemoteError{Op: "create", Name: name, Err: err}
	}
	return nil
}

func (g *GitHub) get(ctx context.Context, op, name string) (*github.RepositoryContent, error) {
	var opts *github.RepositoryContentGetOptions
	if g.branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: g.branch}
	}
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, name, opts)
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, &RemoteError{Op: op, Name: name, Err: err}
	}
	if file == nil {
		return nil, &RemoteError{Op: op, Name: name, Err: errors.New("path is a directory")}
	}
	return file, nil
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
