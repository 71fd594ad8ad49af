// Package resource implements the check, in and out steps of the issue
// resource. Each step starts from the request payload alone; nothing is kept
// between invocations.
package resource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ilia01/issue-resource/internal/concourse"
	"github.com/Ilia01/issue-resource/internal/models"
)

// TicketClient performs single calls against the remote tracker.
type TicketClient interface {
	Create(ctx context.Context, ref models.TicketRef, req models.MutationRequest) (*models.MutationResult, error)
	Read(ctx context.Context, ref models.TicketRef) (models.TicketState, error)
	Update(ctx context.Context, ref models.TicketRef, req models.MutationRequest) (*models.MutationResult, error)
}

// ClientFactory builds a TicketClient for the credentials in a source.
type ClientFactory func(ctx context.Context, source concourse.Source) (TicketClient, error)

type Resource struct {
	newClient ClientFactory
	log       *slog.Logger
}

func New(newClient ClientFactory, log *slog.Logger) *Resource {
	if log == nil {
		log = slog.Default()
	}
	return &Resource{newClient: newClient, log: log}
}

// Check reports the issue state as versions. An open issue yields [Open]; a
// closed one yields [Open, Closed] so the orchestrator sees a new version.
// Without an issue number there is nothing to watch and Check yields [Open].
func (r *Resource) Check(ctx context.Context, source *concourse.Source, previous *concourse.Version) ([]concourse.Version, error) {
	if source == nil {
		return nil, fmt.Errorf("check: %w: source", models.ErrConfigMissing)
	}
	ref := source.Ref()
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}

	open := concourse.NewVersion(models.TicketOpen)
	if ref.Number == nil {
		r.log.Debug("no issue number configured, nothing to watch", "repo", ref.String())
		return []concourse.Version{open}, nil
	}

	client, err := r.newClient(ctx, *source)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}

	state, err := client.Read(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", ref, err)
	}
	r.log.Info("read issue state", "issue", ref.String(), "state", state, "previous", previousState(previous))

	switch state {
	case models.TicketOpen:
		return []concourse.Version{open}, nil
	case models.TicketClosed:
		return []concourse.Version{open, concourse.NewVersion(models.TicketClosed)}, nil
	default:
		return nil, fmt.Errorf("check %s: %w: %q", ref, models.ErrUnrecognizedState, state)
	}
}

// In does not fetch anything; the resource only gates on issue state.
func (r *Resource) In(_ context.Context, _ *concourse.Source, _ *concourse.Version) concourse.InResponse {
	return concourse.InResponse{Version: concourse.NewVersion(models.TicketOpen)}
}

// Out opens a new issue from params and reports it as metadata.
func (r *Resource) Out(ctx context.Context, source *concourse.Source, params *concourse.OutParams) (*concourse.OutResponse, error) {
	if source == nil {
		return nil, fmt.Errorf("out: %w: source", models.ErrConfigMissing)
	}
	if params == nil {
		return nil, fmt.Errorf("out: %w: params", models.ErrConfigMissing)
	}

	ref := source.Ref()
	ref.Number = nil
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("out: %w", err)
	}

	client, err := r.newClient(ctx, *source)
	if err != nil {
		return nil, fmt.Errorf("out: %w", err)
	}

	result, err := client.Create(ctx, ref, params.MutationRequest())
	if err != nil {
		return nil, fmt.Errorf("out %s: %w", ref, err)
	}
	r.log.Info("created issue", "repo", ref.String(), "number", result.Number)

	metadata, err := concourse.NewOutMetadata(result).Pairs()
	if err != nil {
		return nil, fmt.Errorf("out: %w", err)
	}
	return &concourse.OutResponse{
		Version:  concourse.NewVersion(models.TicketOpen),
		Metadata: metadata,
	}, nil
}

func previousState(v *concourse.Version) string {
	if v == nil {
		return ""
	}
	return v.State
}
