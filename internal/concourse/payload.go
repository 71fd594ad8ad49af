// Package concourse holds the JSON shapes exchanged with the orchestrator on
// stdin and stdout, and their conversion to the ticket model.
package concourse

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Ilia01/issue-resource/internal/models"
)

const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
)

// Source is the resource configuration from the pipeline definition.
type Source struct {
	PAT            string  `json:"pat,omitempty"`
	Owner          string  `json:"owner"`
	Repo           string  `json:"repo"`
	Number         *uint64 `json:"number,omitempty"`
	Provider       string  `json:"provider,omitempty"`
	APIURL         string  `json:"api_url,omitempty"`
	AppID          AppID   `json:"app_id,omitempty"`
	InstallationID int64   `json:"installation_id,omitempty"`
	PrivateKey     string  `json:"private_key,omitempty"`
}

func (s Source) Ref() models.TicketRef {
	return models.TicketRef{Owner: s.Owner, Repo: s.Repo, Number: s.Number}
}

func (s Source) ProviderName() string {
	if s.Provider == "" {
		return ProviderGitHub
	}
	return s.Provider
}

func (s Source) HasGitHubApp() bool {
	return s.AppID != "" && s.InstallationID != 0 && s.PrivateKey != ""
}

// AppID is a GitHub App id. Pipelines write it either as a number or as a
// quoted string; both decode to the same decimal text.
type AppID string

func (id *AppID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = AppID(s)
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: app_id must be a positive integer, got %s", models.ErrConfigMissing, data)
	}
	*id = AppID(strconv.FormatUint(n, 10))
	return nil
}

type Version struct {
	State string `json:"state"`
}

func NewVersion(state models.TicketState) Version {
	return Version{State: string(state)}
}

// OutParams are the put step parameters.
type OutParams struct {
	Title     string    `json:"title"`
	Body      *string   `json:"body,omitempty"`
	Labels    *[]string `json:"labels,omitempty"`
	Assignees *[]string `json:"assignees,omitempty"`
	Milestone *uint64   `json:"milestone,omitempty"`
}

func (p OutParams) MutationRequest() models.MutationRequest {
	req := models.MutationRequest{
		Body:      p.Body,
		Labels:    p.Labels,
		Assignees: p.Assignees,
		Milestone: p.Milestone,
	}
	if p.Title != "" {
		title := p.Title
		req.Title = &title
	}
	return req
}

type MetadataPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OutMetadata describes the issue created by a put.
type OutMetadata struct {
	Number    uint64
	Labels    *[]string
	Assignees *[]string
}

func NewOutMetadata(result *models.MutationResult) OutMetadata {
	labels := nonNil(result.Labels)
	assignees := nonNil(result.Assignees)
	return OutMetadata{Number: result.Number, Labels: &labels, Assignees: &assignees}
}

// Pairs flattens the metadata into the name/value list the orchestrator
// renders. Lists are JSON encoded.
func (m OutMetadata) Pairs() ([]MetadataPair, error) {
	pairs := []MetadataPair{{Name: "number", Value: strconv.FormatUint(m.Number, 10)}}
	for _, field := range []struct {
		name   string
		values *[]string
	}{
		{"labels", m.Labels},
		{"assignees", m.Assignees},
	} {
		if field.values == nil {
			continue
		}
		encoded, err := json.Marshal(*field.values)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", field.name, err)
		}
		pairs = append(pairs, MetadataPair{Name: field.name, Value: string(encoded)})
	}
	return pairs, nil
}

type CheckRequest struct {
	Source  *Source  `json:"source"`
	Version *Version `json:"version"`
}

type InRequest struct {
	Source  *Source         `json:"source"`
	Version *Version        `json:"version"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type InResponse struct {
	Version  Version        `json:"version"`
	Metadata []MetadataPair `json:"metadata,omitempty"`
}

type OutRequest struct {
	Source *Source    `json:"source"`
	Params *OutParams `json:"params"`
}

type OutResponse struct {
	Version  Version        `json:"version"`
	Metadata []MetadataPair `json:"metadata"`
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
