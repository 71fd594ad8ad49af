package github

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v72/github"

	"github.com/Ilia01/issue-resource/internal/models"
)

const providerName = "github"

// Options configures a Client. Token wins over App; with neither the client
// talks to the API anonymously.
type Options struct {
	Token      string
	App        *AppCredentials
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	api *gh.Client
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	api, err := newAPI(httpClient, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	token := opts.Token
	if token == "" && opts.App != nil {
		token, err = installationToken(ctx, api, *opts.App, time.Now())
		if err != nil {
			return nil, err
		}
	}
	if token != "" {
		api = api.WithAuthToken(token)
	}
	return &Client{api: api}, nil
}

func newAPI(httpClient *http.Client, baseURL string) (*gh.Client, error) {
	api := gh.NewClient(httpClient)
	api.UserAgent = "issue-resource"
	if baseURL == "" {
		return api, nil
	}
	api, err := api.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("github base url %q: %w", baseURL, err)
	}
	return api, nil
}

func (c *Client) Create(ctx context.Context, ref models.TicketRef, req models.MutationRequest) (*models.MutationResult, error) {
	title, err := req.RequireTitle()
	if err != nil {
		return nil, err
	}

	payload := &gh.IssueRequest{
		Title:     gh.Ptr(title),
		Body:      req.Body,
		Labels:    req.Labels,
		Assignees: req.Assignees,
	}
	if payload.Milestone, err = milestone(req.Milestone); err != nil {
		return nil, err
	}

	issue, resp, err := c.api.Issues.Create(ctx, ref.Owner, ref.Repo, payload)
	if err != nil {
		return nil, remoteError("create issue", resp, err)
	}
	return mutationResult(issue), nil
}

func (c *Client) Read(ctx context.Context, ref models.TicketRef) (models.TicketState, error) {
	if ref.Number == nil {
		return "", models.ErrNumberUnspecified
	}
	number, err := issueNumber(*ref.Number)
	if err != nil {
		return "", err
	}

	issue, resp, err := c.api.Issues.Get(ctx, ref.Owner, ref.Repo, number)
	if err != nil {
		return "", remoteError("get issue", resp, err)
	}
	return models.ParseTicketState(issue.GetState())
}

// Update edits only the fields present in req. Labels and assignees replace
// the lists on the issue.
func (c *Client) Update(ctx context.Context, ref models.TicketRef, req models.MutationRequest) (*models.MutationResult, error) {
	target, err := req.Target(ref)
	if err != nil {
		return nil, err
	}
	number, err := issueNumber(target)
	if err != nil {
		return nil, err
	}

	payload := &gh.IssueRequest{
		Title:     req.Title,
		Body:      req.Body,
		Labels:    req.Labels,
		Assignees: req.Assignees,
	}
	if payload.Milestone, err = milestone(req.Milestone); err != nil {
		return nil, err
	}
	if req.State != nil {
		payload.State = gh.Ptr(strings.ToLower(string(*req.State)))
	}

	issue, resp, err := c.api.Issues.Edit(ctx, ref.Owner, ref.Repo, number, payload)
	if err != nil {
		return nil, remoteError("update issue", resp, err)
	}
	return mutationResult(issue), nil
}

func mutationResult(issue *gh.Issue) *models.MutationResult {
	result := &models.MutationResult{
		Number:    uint64(issue.GetNumber()),
		Labels:    make([]string, 0, len(issue.Labels)),
		Assignees: make([]string, 0, len(issue.Assignees)),
	}
	for _, label := range issue.Labels {
		result.Labels = append(result.Labels, label.GetName())
	}
	for _, user := range issue.Assignees {
		result.Assignees = append(result.Assignees, user.GetLogin())
	}
	return result
}

func remoteError(op string, resp *gh.Response, err error) error {
	remote := &models.RemoteCallError{Provider: providerName, Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		remote.StatusCode = resp.StatusCode
	}
	return remote
}

func issueNumber(number uint64) (int, error) {
	if number > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", models.ErrNumberOutOfRange, number)
	}
	return int(number), nil
}

func milestone(number *uint64) (*int, error) {
	if number == nil {
		return nil, nil
	}
	n, err := issueNumber(*number)
	if err != nil {
		return nil, fmt.Errorf("milestone: %w", err)
	}
	return &n, nil
}
