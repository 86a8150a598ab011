// GitHub repository invoker. The target string is "owner/repo" and
// Request.Resource selects what to fetch: "readme", "languages" or "meta".
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-github/v67/github"

	"github.com/unkn0wn-root/genguard/upstream"
)

var _ upstream.Invoker = (*Invoker)(nil)

type Invoker struct {
	client *github.Client
}

func New(token string) *Invoker {
	c := github.NewClient(nil)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return &Invoker{client: c}
}

// NewWithClient wraps a pre-configured client (enterprise base URL, custom
// transport).
func NewWithClient(c *github.Client) *Invoker {
	return &Invoker{client: c}
}

func (i *Invoker) Invoke(ctx context.Context, target string, req upstream.Request) (upstream.Response, error) {
	owner, repo, err := splitTarget(target)
	if err != nil {
		return upstream.Response{}, err
	}

	switch req.Resource {
	case "readme":
		return i.readme(ctx, owner, repo)
	case "languages":
		return i.languages(ctx, owner, repo)
	case "meta":
		return i.meta(ctx, owner, repo)
	default:
		return upstream.Response{}, fmt.Errorf("genguard/upstream/github: unknown resource %q", req.Resource)
	}
}

func (i *Invoker) readme(ctx context.Context, owner, repo string) (upstream.Response, error) {
	rm, _, err := i.client.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return upstream.Response{}, err
	}
	content, err := rm.GetContent()
	if err != nil {
		return upstream.Response{}, fmt.Errorf("genguard/upstream/github: decode readme: %w", err)
	}
	return upstream.Response{Text: content, Model: owner + "/" + repo}, nil
}

func (i *Invoker) languages(ctx context.Context, owner, repo string) (upstream.Response, error) {
	langs, _, err := i.client.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return upstream.Response{}, err
	}
	raw, err := json.Marshal(langs)
	if err != nil {
		return upstream.Response{}, err
	}
	return upstream.Response{Text: string(raw), Model: owner + "/" + repo}, nil
}

func (i *Invoker) meta(ctx context.Context, owner, repo string) (upstream.Response, error) {
	r, _, err := i.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return upstream.Response{}, err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return upstream.Response{}, err
	}
	return upstream.Response{Text: string(raw), Model: owner + "/" + repo}, nil
}

func splitTarget(target string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(target, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("genguard/upstream/github: target %q is not owner/repo", target)
	}
	return owner, repo, nil
}
