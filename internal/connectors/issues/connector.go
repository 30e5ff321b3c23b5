// Package issues provides a Source that ingests issues from GitHub
// repositories, optionally including their comment threads.
package issues

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

// Type is the source type identifier for this connector.
const Type = "issues"

// Ensure Connector implements the interface.
var _ driven.Source = (*Connector)(nil)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxComments = 100
	perPage            = 100
)

// repoRef is one "owner/name" repository to ingest from.
type repoRef struct {
	Owner string
	Name  string
}

// issueRef is the SourceRef carried by items from this connector.
type issueRef struct {
	Repo   repoRef
	Number int
}

// Connector ingests GitHub issues via the REST API.
type Connector struct {
	repos        []repoRef
	loadComments bool
	maxComments  int
	gh           *gh.Client
}

// New creates an issues connector from its source configuration.
// The "repos" option is required and holds a comma-separated list of
// "owner/name" pairs. A "token" option enables authenticated access.
func New(cfg domain.SourceConfig) (*Connector, error) {
	rawRepos := cfg.OptionList("repos")
	if len(rawRepos) == 0 {
		return nil, fmt.Errorf("%w: issues source %q needs a repos option", domain.ErrInvalidConfig, cfg.Name)
	}

	repos := make([]repoRef, 0, len(rawRepos))
	for _, raw := range rawRepos {
		owner, name, ok := strings.Cut(raw, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("%w: issues source %q: repo %q is not owner/name", domain.ErrInvalidConfig, cfg.Name, raw)
		}
		repos = append(repos, repoRef{Owner: owner, Name: name})
	}

	var httpClient *http.Client
	if token := cfg.Option("token", ""); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = DefaultTimeout

	return &Connector{
		repos:        repos,
		loadComments: cfg.OptionBool("load_comments", true),
		maxComments:  cfg.OptionInt("max_comments", DefaultMaxComments),
		gh:           gh.NewClient(httpClient),
	}, nil
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// Validate checks each configured repository is reachable.
func (c *Connector) Validate(ctx context.Context) error {
	for _, repo := range c.repos {
		if _, _, err := c.gh.Repositories.Get(ctx, repo.Owner, repo.Name); err != nil {
			return fmt.Errorf("repository %s/%s: %w", repo.Owner, repo.Name, err)
		}
	}
	return nil
}

// ListItems enumerates issues from every configured repository. Pull
// requests share the issues endpoint and are filtered out.
func (c *Connector) ListItems(ctx context.Context) (<-chan domain.Item, <-chan error) {
	items := make(chan domain.Item)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(items)

		for _, repo := range c.repos {
			if err := c.listRepo(ctx, repo, items); err != nil {
				errs <- err
				return
			}
		}
	}()

	return items, errs
}

func (c *Connector) listRepo(ctx context.Context, repo repoRef, items chan<- domain.Item) error {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		issues, resp, err := c.gh.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return fmt.Errorf("listing issues in %s/%s: %w", repo.Owner, repo.Name, err)
		}

		for _, issue := range issues {
			// Pull requests show up in the issues endpoint too.
			if issue.IsPullRequest() {
				continue
			}

			item := domain.Item{
				ID:        fmt.Sprintf("github://%s/%s/issues/%d", repo.Owner, repo.Name, issue.GetNumber()),
				SourceRef: issueRef{Repo: repo, Number: issue.GetNumber()},
				URL:       issue.GetHTMLURL(),
			}
			if updated := issue.GetUpdatedAt().Time; !updated.IsZero() {
				t := updated.UTC()
				item.LastModified = &t
			}

			select {
			case items <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

// FetchContent renders the issue as markdown-ish text: title, body,
// then the comment thread when enabled.
func (c *Connector) FetchContent(ctx context.Context, item domain.Item) (string, map[string]any, error) {
	ref, ok := item.SourceRef.(issueRef)
	if !ok {
		return "", nil, fmt.Errorf("%w: item %s has no issue reference", domain.ErrInvalidInput, item.ID)
	}

	issue, _, err := c.gh.Issues.Get(ctx, ref.Repo.Owner, ref.Repo.Name, ref.Number)
	if err != nil {
		return "", nil, fmt.Errorf("fetching issue %s: %w", item.ID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", issue.GetTitle())
	if body := strings.TrimSpace(issue.GetBody()); body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}

	if c.loadComments && issue.GetComments() > 0 {
		comments, err := c.fetchComments(ctx, ref)
		if err != nil {
			// The issue text alone is still worth ingesting.
			logger.Warn("issues: comments for %s: %v", item.ID, err)
		} else if len(comments) > 0 {
			b.WriteString("\n## Comments\n")
			for _, comment := range comments {
				fmt.Fprintf(&b, "\n%s:\n%s\n", comment.GetUser().GetLogin(), strings.TrimSpace(comment.GetBody()))
			}
		}
	}

	aux := map[string]any{
		"state":  issue.GetState(),
		"author": issue.GetUser().GetLogin(),
	}
	if len(issue.Labels) > 0 {
		labels := make([]string, len(issue.Labels))
		for i, l := range issue.Labels {
			labels[i] = l.GetName()
		}
		aux["labels"] = strings.Join(labels, ",")
	}

	return b.String(), aux, nil
}

func (c *Connector) fetchComments(ctx context.Context, ref issueRef) ([]*gh.IssueComment, error) {
	var all []*gh.IssueComment

	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, ref.Repo.Owner, ref.Repo.Name, ref.Number, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, comments...)

		if len(all) >= c.maxComments {
			return all[:c.maxComments], nil
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ItemName derives a key of the form "owner__repo__number".
func (c *Connector) ItemName(item domain.Item) string {
	ref, _ := item.SourceRef.(issueRef)
	return fmt.Sprintf("%s__%s__%d", ref.Repo.Owner, ref.Repo.Name, ref.Number)
}

// ExtraMetadata reports the repository the issue belongs to.
func (c *Connector) ExtraMetadata(item domain.Item, _ string, _ map[string]any) map[string]any {
	ref, _ := item.SourceRef.(issueRef)
	return map[string]any{
		"repository":   ref.Repo.Owner + "/" + ref.Repo.Name,
		"issue_number": ref.Number,
	}
}

// Close releases resources.
func (c *Connector) Close() error {
	return nil
}
