// Package github implements the repository-hosting capability against the
// GitHub REST API: file fetch/commit via the contents endpoint and repository
// search. Transport retries are delegated to retryablehttp.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

// Client talks to the GitHub REST API v3.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	log     *slog.Logger
}

// New creates a Client from GitHubConfig.
func New(cfg config.GitHubConfig, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = log.New(io.Discard, "", 0)

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    rc,
		log:     logger.With("adapter", "github"),
	}
}

// FetchFile returns the decoded content of a file at the given branch.
// A missing file maps to domain.ErrNotFound.
func (c *Client) FetchFile(ctx context.Context, owner, repo, branch, path string) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.contentsURL(owner, repo, path, branch), nil)
	if err != nil {
		return "", &domain.ExternalError{Capability: "github", Err: err}
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("%s/%s:%s: %w", owner, repo, path, domain.ErrNotFound)
	}
	if status != http.StatusOK {
		return "", &domain.ExternalError{Capability: "github", Err: fmt.Errorf("fetch file: status %d", status)}
	}

	encoded := gjson.GetBytes(body, "content").String()
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\n", ""))
	if err != nil {
		return "", &domain.ExternalError{Capability: "github", Err: fmt.Errorf("decode content: %w", err)}
	}

	c.log.DebugContext(ctx, "file fetched",
		slog.String("repo", owner+"/"+repo),
		slog.String("path", path),
		slog.Int("bytes", len(decoded)),
	)
	return string(decoded), nil
}

// CommitFile creates or updates a file on the given branch and returns the
// commit SHA. For updates the current blob SHA is looked up first, as the
// contents API requires it.
func (c *Client) CommitFile(ctx context.Context, owner, repo, branch, path, content, message string) (string, error) {
	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}

	if sha, err := c.blobSHA(ctx, owner, repo, branch, path); err != nil {
		return "", err
	} else if sha != "" {
		payload["sha"] = sha
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("github: marshal commit payload: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPut, c.contentsURL(owner, repo, path, ""), reqBody)
	if err != nil {
		return "", &domain.ExternalError{Capability: "github", Err: err}
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", &domain.ExternalError{Capability: "github", Err: fmt.Errorf("commit file: status %d", status)}
	}

	commitSHA := gjson.GetBytes(body, "commit.sha").String()
	c.log.InfoContext(ctx, "file committed",
		slog.String("repo", owner+"/"+repo),
		slog.String("path", path),
		slog.String("commit", commitSHA),
	)
	return commitSHA, nil
}

// SearchRepositories runs a repository search query, returning at most one page.
func (c *Client) SearchRepositories(ctx context.Context, query string) ([]provider.RepositoryRef, error) {
	u := fmt.Sprintf("%s/search/repositories?q=%s&per_page=50", c.baseURL, url.QueryEscape(query))

	body, status, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.ExternalError{Capability: "github", Err: err}
	}
	if status != http.StatusOK {
		return nil, &domain.ExternalError{Capability: "github", Err: fmt.Errorf("search: status %d", status)}
	}

	var refs []provider.RepositoryRef
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		refs = append(refs, provider.RepositoryRef{
			Owner:       item.Get("owner.login").String(),
			Name:        item.Get("name").String(),
			Description: item.Get("description").String(),
			Stars:       int(item.Get("stargazers_count").Int()),
			URL:         item.Get("html_url").String(),
		})
		return true
	})

	return refs, nil
}

// blobSHA returns the current blob SHA for a path, or "" when the file does
// not exist yet.
func (c *Client) blobSHA(ctx context.Context, owner, repo, branch, path string) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.contentsURL(owner, repo, path, branch), nil)
	if err != nil {
		return "", &domain.ExternalError{Capability: "github", Err: err}
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", &domain.ExternalError{Capability: "github", Err: fmt.Errorf("lookup blob sha: status %d", status)}
	}
	return gjson.GetBytes(body, "sha").String(), nil
}

func (c *Client) contentsURL(owner, repo, path, branch string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, owner, repo, strings.TrimPrefix(path, "/"))
	if branch != "" {
		u += "?ref=" + url.QueryEscape(branch)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, int, error) {
	var reqBody any
	if body != nil {
		reqBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
