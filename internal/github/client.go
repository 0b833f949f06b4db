package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/shaun/assetsync/internal/config"
	"github.com/shaun/assetsync/internal/sync"
	"golang.org/x/oauth2"
)

// TokenSource supplies the access token for each request batch.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client reads trees and file contents through the GitHub REST API.
type Client struct {
	tokens  TokenSource
	hc      *http.Client // optional; for tests
	apiBase string       // empty for github.com
}

func NewClient(tokens TokenSource, apiBase string) *Client {
	return &Client{tokens: tokens, apiBase: apiBase}
}

// NewClientWithHTTPClient returns a client that sends API calls through hc (e.g. in tests).
func NewClientWithHTTPClient(hc *http.Client, tokens TokenSource, apiBase string) *Client {
	return &Client{tokens: tokens, hc: hc, apiBase: apiBase}
}

func (c *Client) api(ctx context.Context) (*github.Client, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, sync.ErrAuthentication
	}
	if c.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if c.apiBase == "" {
		return client, nil
	}
	client, err = client.WithEnterpriseURLs(c.apiBase, c.apiBase)
	if err != nil {
		return nil, fmt.Errorf("invalid enterprise URL %q: %w", c.apiBase, err)
	}
	return client, nil
}

// ListTree returns the recursive tree of branch.
func (c *Client) ListTree(ctx context.Context, owner, repo, branch string) (*sync.RemoteTree, error) {
	client, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	tree, resp, err := client.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, apiError(resp, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: empty tree for %s/%s@%s", sync.ErrMalformedResponse, owner, repo, branch)
	}

	out := &sync.RemoteTree{
		SHA:       tree.GetSHA(),
		Truncated: tree.GetTruncated(),
		Nodes:     make([]sync.RemoteNode, 0, len(tree.Entries)),
	}
	for i, e := range tree.Entries {
		if e == nil || e.Path == nil || e.SHA == nil || e.Type == nil {
			return nil, fmt.Errorf("%w: tree entry %d of %s/%s lacks path, sha or type", sync.ErrMalformedResponse, i, owner, repo)
		}
		out.Nodes = append(out.Nodes, sync.RemoteNode{
			Path: e.GetPath(),
			SHA:  e.GetSHA(),
			Type: sync.NodeType(e.GetType()),
			Size: int64(e.GetSize()),
		})
	}
	return out, nil
}

// GetFileContent fetches and decodes one file at branch.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, branch string) (*sync.RemoteFile, error) {
	client, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	opts := &github.RepositoryContentGetOptions{Ref: branch}
	file, _, resp, err := client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, apiError(resp, err)
	}
	if file == nil || file.GetType() != "file" {
		return nil, fmt.Errorf("%w: %s is not a file", sync.ErrMalformedResponse, path)
	}

	var content []byte
	if file.GetEncoding() == "none" {
		// files over 1 MB come without inline content
		content, err = c.download(ctx, client, owner, repo, path, opts)
		if err != nil {
			return nil, err
		}
	} else {
		s, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", sync.ErrMalformedResponse, path, err)
		}
		content = []byte(s)
	}
	return &sync.RemoteFile{Path: path, SHA: file.GetSHA(), Content: content}, nil
}

func (c *Client) download(ctx context.Context, client *github.Client, owner, repo, path string, opts *github.RepositoryContentGetOptions) ([]byte, error) {
	rc, resp, err := client.Repositories.DownloadContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, apiError(resp, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", path, err)
	}
	return data, nil
}

// apiError turns go-github errors into *sync.RemoteAPIError, keeping the
// quota snapshot when the response carried one.
func apiError(resp *github.Response, err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &sync.RemoteAPIError{
			StatusCode: statusOf(rle.Response, http.StatusForbidden),
			Message:    rle.Message,
			RateLimit:  rateOf(rle.Rate),
			Err:        err,
		}
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		rl := &sync.RateLimit{Reset: time.Now().Add(abuse.GetRetryAfter())}
		return &sync.RemoteAPIError{
			StatusCode: statusOf(abuse.Response, http.StatusForbidden),
			Message:    abuse.Message,
			RateLimit:  rl,
			Err:        err,
		}
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		apiErr := &sync.RemoteAPIError{StatusCode: er.Response.StatusCode, Message: er.Message, Err: err}
		if resp != nil && resp.Rate.Limit > 0 {
			apiErr.RateLimit = rateOf(resp.Rate)
		}
		return apiErr
	}
	return err
}

func statusOf(r *http.Response, fallback int) int {
	if r == nil {
		return fallback
	}
	return r.StatusCode
}

func rateOf(r github.Rate) *sync.RateLimit {
	return &sync.RateLimit{Limit: r.Limit, Remaining: r.Remaining, Reset: r.Reset.Time}
}

// HTMLURL links to a file, or to a directory when dir is set, in the web UI.
func HTMLURL(base string, repo config.Repository, remotePath string, dir bool) string {
	kind := "blob"
	if dir {
		kind = "tree"
	}
	segments := strings.Split(remotePath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s",
		strings.TrimRight(base, "/"), repo.Owner, repo.Repo, kind, url.PathEscape(repo.Branch), strings.Join(segments, "/"))
}
