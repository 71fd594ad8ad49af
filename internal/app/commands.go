package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Ilia01/issue-resource/internal/concourse"
	"github.com/Ilia01/issue-resource/internal/config"
	"github.com/Ilia01/issue-resource/internal/logging"
	"github.com/Ilia01/issue-resource/internal/models"
	githubProvider "github.com/Ilia01/issue-resource/internal/providers/github"
	gitlabProvider "github.com/Ilia01/issue-resource/internal/providers/gitlab"
	"github.com/Ilia01/issue-resource/internal/resource"
)

var clientFactory resource.ClientFactory = newTicketClient

func handleCheck(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	var req concourse.CheckRequest
	if err := readRequest(stdin, &req); err != nil {
		return err
	}

	versions, err := newResource("check").Check(ctx, req.Source, req.Version)
	if err != nil {
		return err
	}
	return writeResponse(stdout, versions)
}

// handleIn never fails on its input: fetch reads nothing from the request.
func handleIn(ctx context.Context, destination string, stdin io.Reader, stdout io.Writer) error {
	var req concourse.InRequest
	if err := readRequest(stdin, &req); err != nil {
		slog.Debug("ignoring unreadable in request", "error", err, "destination", destination)
		req = concourse.InRequest{}
	}

	return writeResponse(stdout, newResource("in").In(ctx, req.Source, req.Version))
}

func handleOut(ctx context.Context, sourceDir string, stdin io.Reader, stdout io.Writer) error {
	var req concourse.OutRequest
	if err := readRequest(stdin, &req); err != nil {
		return err
	}

	resp, err := newResource("out").Out(ctx, req.Source, req.Params)
	if err != nil {
		return err
	}
	return writeResponse(stdout, resp)
}

func newResource(step string) *resource.Resource {
	log := logging.With("step", step, "invocation", uuid.NewString())
	return resource.New(func(ctx context.Context, source concourse.Source) (resource.TicketClient, error) {
		log.Debug("building client",
			"provider", source.ProviderName(),
			"pat", config.MaskToken(source.PAT),
			"github_app", source.HasGitHubApp())
		return clientFactory(ctx, source)
	}, log)
}

func newTicketClient(ctx context.Context, source concourse.Source) (resource.TicketClient, error) {
	current := currentSettings()

	switch source.ProviderName() {
	case concourse.ProviderGitHub:
		opts := githubProvider.Options{
			Token:   source.PAT,
			BaseURL: firstNonEmpty(source.APIURL, current.GitHubAPIURL),
		}
		if source.PAT == "" && source.HasGitHubApp() {
			opts.App = &githubProvider.AppCredentials{
				AppID:          string(source.AppID),
				InstallationID: source.InstallationID,
				PrivateKey:     []byte(source.PrivateKey),
			}
		}
		client, err := githubProvider.NewClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	case concourse.ProviderGitLab:
		client, err := gitlabProvider.NewClient(firstNonEmpty(source.APIURL, current.GitLabAPIURL), source.PAT, nil)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", models.ErrConfigMissing, source.Provider)
	}
}

func currentSettings() *config.Settings {
	if settings != nil {
		return settings
	}
	return &config.Settings{GitLabAPIURL: "https://gitlab.com"}
}

// readRequest decodes the step's JSON request from stdin, or from the
// --payload file when one is given. Payload files may be YAML.
func readRequest(stdin io.Reader, v any) error {
	if payloadFile == "" {
		if err := json.NewDecoder(stdin).Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty request", models.ErrConfigMissing)
			}
			return fmt.Errorf("parse request: %w", err)
		}
		return nil
	}

	data, err := os.ReadFile(payloadFile)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse payload %s: %w", payloadFile, err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert payload %s: %w", payloadFile, err)
	}
	if err := json.Unmarshal(converted, v); err != nil {
		return fmt.Errorf("parse payload %s: %w", payloadFile, err)
	}
	slog.Debug("read request from payload file", "path", payloadFile)
	return nil
}

func writeResponse(stdout io.Writer, v any) error {
	if err := json.NewEncoder(stdout).Encode(v); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
