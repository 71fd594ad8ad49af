package gitlab

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/Ilia01/issue-resource/internal/models"
)

const providerName = "gitlab"

type Client struct {
	api *gl.Client
}

// NewClient talks to the v4 API under baseURL. An empty token makes
// anonymous requests. Retries are disabled: a failed call fails the step.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	api, err := gl.NewClient(token,
		gl.WithBaseURL(strings.TrimRight(baseURL, "/")),
		gl.WithHTTPClient(httpClient),
		gl.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("gitlab base url %q: %w", baseURL, err)
	}
	api.UserAgent = "issue-resource"
	return &Client{api: api}, nil
}

func (c *Client) Create(ctx context.Context, ref models.TicketRef, req models.MutationRequest) (*models.MutationResult, error) {
	title, err := req.RequireTitle()
	if err != nil {
		return nil, err
	}
	assignees, err := assigneeIDs(req.Assignees)
	if err != nil {
		return nil, err
	}
	milestone, err := toInt(req.Milestone)
	if err != nil {
		return nil, fmt.Errorf("milestone: %w", err)
	}

	opts := &gl.CreateIssueOptions{
		Title:       gl.Ptr(title),
		Description: req.Body,
		Labels:      labelOptions(req.Labels),
		MilestoneID: milestone,
		AssigneeIDs: assignees,
	}
	issue, resp, err := c.api.Issues.CreateIssue(projectID(ref), opts, gl.WithContext(ctx))
	if err != nil {
		return nil, remoteError("create issue", resp, err)
	}
	return mutationResult(issue), nil
}

func (c *Client) Read(ctx context.Context, ref models.TicketRef) (models.TicketState, error) {
	if ref.Number == nil {
		return "", models.ErrNumberUnspecified
	}
	number, err := issueIID(*ref.Number)
	if err != nil {
		return "", err
	}

	issue, resp, err := c.api.Issues.GetIssue(projectID(ref), number, gl.WithContext(ctx))
	if err != nil {
		return "", remoteError("get issue", resp, err)
	}
	return parseState(issue.State)
}

// Update edits only the fields present in req. Labels replace the issue's
// label set; an empty assignee list unassigns everyone.
func (c *Client) Update(ctx context.Context, ref models.TicketRef, req models.MutationRequest) (*models.MutationResult, error) {
	target, err := req.Target(ref)
	if err != nil {
		return nil, err
	}
	number, err := issueIID(target)
	if err != nil {
		return nil, err
	}
	assignees, err := assigneeIDs(req.Assignees)
	if err != nil {
		return nil, err
	}
	milestone, err := toInt(req.Milestone)
	if err != nil {
		return nil, fmt.Errorf("milestone: %w", err)
	}

	opts := &gl.UpdateIssueOptions{
		Title:       req.Title,
		Description: req.Body,
		Labels:      labelOptions(req.Labels),
		MilestoneID: milestone,
		AssigneeIDs: assignees,
	}
	if req.State != nil {
		switch *req.State {
		case models.TicketOpen:
			opts.StateEvent = gl.Ptr("reopen")
		case models.TicketClosed:
			opts.StateEvent = gl.Ptr("close")
		default:
			return nil, fmt.Errorf("%w: %q", models.ErrUnrecognizedState, *req.State)
		}
	}

	issue, resp, err := c.api.Issues.UpdateIssue(projectID(ref), number, opts, gl.WithContext(ctx))
	if err != nil {
		return nil, remoteError("update issue", resp, err)
	}
	return mutationResult(issue), nil
}

func projectID(ref models.TicketRef) string {
	return ref.Owner + "/" + ref.Repo
}

func labelOptions(labels *[]string) *gl.LabelOptions {
	if labels == nil {
		return nil
	}
	opts := gl.LabelOptions(append([]string{}, *labels...))
	return &opts
}

// assigneeIDs maps usernames to user ids. GitLab has no username form, so only
// the empty list (unassign everyone) can be expressed.
func assigneeIDs(assignees *[]string) (*[]int, error) {
	if assignees == nil {
		return nil, nil
	}
	if len(*assignees) > 0 {
		return nil, fmt.Errorf("%w: gitlab assigns issues by user id, not username", models.ErrUnsupportedField)
	}
	return gl.Ptr([]int{}), nil
}

func parseState(raw string) (models.TicketState, error) {
	switch raw {
	case "opened":
		return models.TicketOpen, nil
	case "closed":
		return models.TicketClosed, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnrecognizedState, raw)
	}
}

func mutationResult(issue *gl.Issue) *models.MutationResult {
	result := &models.MutationResult{
		Number:    uint64(issue.IID),
		Labels:    make([]string, 0, len(issue.Labels)),
		Assignees: make([]string, 0, len(issue.Assignees)),
	}
	result.Labels = append(result.Labels, issue.Labels...)
	for _, a := range issue.Assignees {
		result.Assignees = append(result.Assignees, a.Username)
	}
	return result
}

// remoteError covers transport failures, non-2xx statuses and bodies that
// fail to decode; the last two carry the response status.
func remoteError(op string, resp *gl.Response, err error) error {
	remote := &models.RemoteCallError{Provider: providerName, Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		remote.StatusCode = resp.StatusCode
	}
	return remote
}

func issueIID(number uint64) (int, error) {
	if number > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", models.ErrNumberOutOfRange, number)
	}
	return int(number), nil
}

func toInt(number *uint64) (*int, error) {
	if number == nil {
		return nil, nil
	}
	n, err := issueIID(*number)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
