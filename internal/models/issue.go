package models

import "fmt"

// TicketRef identifies one remote issue. Number is nil until the issue exists
// or when the caller does not care about a specific issue.
type TicketRef struct {
	Owner  string
	Repo   string
	Number *uint64
}

func (r TicketRef) Validate() error {
	if r.Owner == "" || r.Repo == "" {
		return fmt.Errorf("%w: owner and repo are required", ErrConfigMissing)
	}
	return nil
}

func (r TicketRef) String() string {
	if r.Number == nil {
		return fmt.Sprintf("%s/%s", r.Owner, r.Repo)
	}
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, *r.Number)
}

type TicketState string

const (
	TicketOpen   TicketState = "Open"
	TicketClosed TicketState = "Closed"
)

// ParseTicketState maps the tracker's lowercase state onto TicketState.
func ParseTicketState(raw string) (TicketState, error) {
	switch raw {
	case "open":
		return TicketOpen, nil
	case "closed":
		return TicketClosed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedState, raw)
	}
}

// MutationRequest carries the fields of a create or update. A nil field is
// left out of the outgoing request; a pointer to an empty value is sent as is.
type MutationRequest struct {
	Title     *string
	Body      *string
	Milestone *uint64
	Labels    *[]string
	Assignees *[]string
	Number    *uint64
	State     *TicketState
}

// Target returns the issue number an update applies to.
func (m MutationRequest) Target(ref TicketRef) (uint64, error) {
	switch {
	case m.Number != nil:
		return *m.Number, nil
	case ref.Number != nil:
		return *ref.Number, nil
	default:
		return 0, ErrNumberUnspecified
	}
}

func (m MutationRequest) RequireTitle() (string, error) {
	if m.Title == nil || *m.Title == "" {
		return "", ErrTitleUnspecified
	}
	return *m.Title, nil
}

type MutationResult struct {
	Number    uint64
	Labels    []string
	Assignees []string
}
