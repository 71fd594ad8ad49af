package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Ilia01/issue-resource/internal/models"
)

func TestCreateIssue(t *testing.T) {
	var sent map[string]json.RawMessage
	client := newTestClient(t, "token", func(req *http.Request) *http.Response {
		if req.Method != http.MethodPost {
			t.Fatalf("expected POST got %s", req.Method)
		}
		if req.URL.Path != "/repos/acme/widgets/issues" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		sent = decodeBody(t, req)
		return jsonResponse(req, http.StatusCreated, `{"number":17,"state":"open","labels":[{"name":"ci"}],"assignees":[]}`)
	})

	labels := []string{"ci"}
	result, err := client.Create(context.Background(), ref(nil), models.MutationRequest{
		Title:  strPtr("Build failed"),
		Labels: &labels,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if result.Number != 17 {
		t.Fatalf("unexpected number: %d", result.Number)
	}
	if len(result.Labels) != 1 || result.Labels[0] != "ci" {
		t.Fatalf("unexpected labels: %v", result.Labels)
	}
	if result.Assignees == nil || len(result.Assignees) != 0 {
		t.Fatalf("expected empty assignees got %v", result.Assignees)
	}

	if string(sent["title"]) != `"Build failed"` {
		t.Fatalf("unexpected title: %s", sent["title"])
	}
	for _, field := range []string{"body", "assignees", "milestone", "state"} {
		if _, ok := sent[field]; ok {
			t.Fatalf("absent field %s was sent", field)
		}
	}
}

func TestCreateIssueSendsExplicitlyEmptyFields(t *testing.T) {
	var sent map[string]json.RawMessage
	client := newTestClient(t, "", func(req *http.Request) *http.Response {
		if got := req.Header.Get("Authorization"); got != "" {
			t.Fatalf("expected anonymous request got %q", got)
		}
		sent = decodeBody(t, req)
		return jsonResponse(req, http.StatusCreated, `{"number":3,"state":"open"}`)
	})

	empty := []string{}
	if _, err := client.Create(context.Background(), ref(nil), models.MutationRequest{
		Title:     strPtr("t"),
		Body:      strPtr(""),
		Assignees: &empty,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if string(sent["body"]) != `""` {
		t.Fatalf("empty body not sent: %s", sent["body"])
	}
	if string(sent["assignees"]) != `[]` {
		t.Fatalf("empty assignees not sent: %s", sent["assignees"])
	}
	if _, ok := sent["labels"]; ok {
		t.Fatalf("absent labels were sent")
	}
}

func TestCreateIssueRequiresTitle(t *testing.T) {
	client := newTestClient(t, "token", func(req *http.Request) *http.Response {
		t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		return nil
	})

	if _, err := client.Create(context.Background(), ref(nil), models.MutationRequest{}); !errors.Is(err, models.ErrTitleUnspecified) {
		t.Fatalf("expected ErrTitleUnspecified got %v", err)
	}
}

func TestCreateIssueError(t *testing.T) {
	client := newTestClient(t, "token", func(req *http.Request) *http.Response {
		return jsonResponse(req, http.StatusInternalServerError, `{"message":"fail"}`)
	})

	_, err := client.Create(context.Background(), ref(nil), models.MutationRequest{Title: strPtr("t")})
	var remote *models.RemoteCallError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteCallError got %v", err)
	}
	if remote.StatusCode != http.StatusInternalServerError || remote.Provider != "github" {
		t.Fatalf("unexpected remote error: %+v", remote)
	}
}

func TestReadIssue(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		want    models.TicketState
		wantErr error
	}{
		{"open", "open", models.TicketOpen, nil},
		{"closed", "closed", models.TicketClosed, nil},
		{"unknown", "archived", "", models.ErrUnrecognizedState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "token", func(req *http.Request) *http.Response {
				if req.Method != http.MethodGet || req.URL.Path != "/repos/acme/widgets/issues/42" {
					t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
				}
				return jsonResponse(req, http.StatusOK, `{"number":42,"state":"`+tt.state+`"}`)
			})

			number := uint64(42)
			got, err := client.Read(context.Background(), ref(&number))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Read() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReadIssueIsStable(t *testing.T) {
	calls := 0
	client := newTestClient(t, "", func(req *http.Request) *http.Response {
		calls++
		return jsonResponse(req, http.StatusOK, `{"number":42,"state":"closed"}`)
	})

	number := uint64(42)
	first, err := client.Read(context.Background(), ref(&number))
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := client.Read(context.Background(), ref(&number))
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if first != second {
		t.Fatalf("state changed between reads: %s vs %s", first, second)
	}
	if calls != 2 {
		t.Fatalf("expected one call per read got %d", calls)
	}
}

func TestReadIssueRequiresNumber(t *testing.T) {
	client := newTestClient(t, "token", func(req *http.Request) *http.Response {
		t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		return nil
	})

	if _, err := client.Read(context.Background(), ref(nil)); !errors.Is(err, models.ErrNumberUnspecified) {
		t.Fatalf("expected ErrNumberUnspecified got %v", err)
	}
}

func TestIssueNumberOutOfRange(t *testing.T) {
	client := newTestClient(t, "token", func(req *http.Request) *http.Response {
		t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		return nil
	})

	huge := uint64(1) << 40
	if _, err := client.Read(context.Background(), ref(&huge)); !errors.Is(err, models.ErrNumberOutOfRange) {
		t.Fatalf("expected ErrNumberOutOfRange from Read got %v", err)
	}
	_, err := client.Create(context.Background(), ref(nil), models.MutationRequest{Title: strPtr("t"), Milestone: &huge})
	if !errors.Is(err, models.ErrNumberOutOfRange) {
		t.Fatalf("expected ErrNumberOutOfRange for milestone got %v", err)
	}
}

func TestReadIssueNotFound(t *testing.T) {
	client := newTestClient(t, "", func(req *http.Request) *http.Response {
		return jsonResponse(req, http.StatusNotFound, `{"message":"Not Found"}`)
	})

	number := uint64(404)
	_, err := client.Read(context.Background(), ref(&number))
	if !models.IsRemoteCallFailed(err) {
		t.Fatalf("expected remote call failure got %v", err)
	}
}

func TestUpdateIssueSendsOnlyPresentFields(t *testing.T) {
	var sent map[string]json.RawMessage
	client := newTestClient(t, "token", func(req *http.Request) *http.Response {
		if req.Method != http.MethodPatch || req.URL.Path != "/repos/acme/widgets/issues/42" {
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		sent = decodeBody(t, req)
		return jsonResponse(req, http.StatusOK, `{"number":42,"state":"closed","labels":[{"name":"done"}],"assignees":[{"login":"octocat"}]}`)
	})

	number := uint64(42)
	closed := models.TicketClosed
	labels := []string{"done"}
	result, err := client.Update(context.Background(), ref(&number), models.MutationRequest{
		State:  &closed,
		Labels: &labels,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if string(sent["state"]) != `"closed"` {
		t.Fatalf("unexpected state: %s", sent["state"])
	}
	if string(sent["labels"]) != `["done"]` {
		t.Fatalf("labels should replace the list: %s", sent["labels"])
	}
	for _, field := range []string{"title", "body", "assignees", "milestone"} {
		if _, ok := sent[field]; ok {
			t.Fatalf("absent field %s was sent", field)
		}
	}
	if result.Number != 42 || len(result.Assignees) != 1 || result.Assignees[0] != "octocat" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestUpdateIssueRequiresNumber(t *testing.T) {
	client := newTestClient(t, "token", func(req *http.Request) *http.Response {
		t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		return nil
	})

	if _, err := client.Update(context.Background(), ref(nil), models.MutationRequest{Title: strPtr("t")}); !errors.Is(err, models.ErrNumberUnspecified) {
		t.Fatalf("expected ErrNumberUnspecified got %v", err)
	}
}

func TestEnterpriseBaseURL(t *testing.T) {
	client, err := NewClient(context.Background(), Options{
		BaseURL: "https://ghe.example.com/",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			if req.URL.Host != "ghe.example.com" || req.URL.Path != "/api/v3/repos/acme/widgets/issues/1" {
				t.Fatalf("unexpected url: %s", req.URL)
			}
			return jsonResponse(req, http.StatusOK, `{"number":1,"state":"open"}`)
		})},
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	number := uint64(1)
	if _, err := client.Read(context.Background(), ref(&number)); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
}

func newTestClient(t *testing.T, token string, fn roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), Options{
		Token:      token,
		HTTPClient: &http.Client{Transport: fn},
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func ref(number *uint64) models.TicketRef {
	return models.TicketRef{Owner: "acme", Repo: "widgets", Number: number}
}

func strPtr(s string) *string {
	return &s
}

func decodeBody(t *testing.T, req *http.Request) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func jsonResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}
}
