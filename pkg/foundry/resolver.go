package foundry

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Resolve turns the configured agent selection into a concrete identity.
//
// A non-empty explicitID must have the form name:version; that version is
// fetched to prove it exists and the identity is returned as given. An empty
// explicitID falls back to looking up fallbackName and taking its latest
// version. Every failure wraps ErrResolution.
func Resolve(ctx context.Context, dir Directory, explicitID, fallbackName string) (AgentIdentity, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("foundry")

	ctx, span := tracer.Start(ctx, "foundry.resolve_agent")
	defer span.End()

	identity, err := resolve(ctx, log, dir, explicitID, fallbackName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AgentIdentity{}, err
	}
	span.SetAttributes(
		attribute.String("gen_ai.agent.name", identity.Name),
		attribute.String("gen_ai.agent.version", identity.Version),
	)
	return identity, nil
}

func resolve(ctx context.Context, log logr.Logger, dir Directory, explicitID, fallbackName string) (AgentIdentity, error) {
	if explicitID != "" {
		identity, err := ParseAgentID(explicitID)
		if err != nil {
			return AgentIdentity{}, err
		}
		version, err := dir.GetVersion(ctx, identity.Name, identity.Version)
		if err != nil {
			return AgentIdentity{}, fmt.Errorf("%w: get agent version %s: %w", ErrResolution, identity, err)
		}
		log.Info("Using explicit agent ID", "agent", identity.String(), "agentObjectID", version.ID)
		return identity, nil
	}

	if fallbackName == "" {
		return AgentIdentity{}, fmt.Errorf("%w: no agent ID or agent name configured", ErrResolution)
	}

	log.Info("No explicit agent ID, discovering by name", "agentName", fallbackName)
	agent, err := dir.GetAgent(ctx, fallbackName)
	if err != nil {
		return AgentIdentity{}, fmt.Errorf("%w: get agent %q: %w", ErrResolution, fallbackName, err)
	}
	latest := agent.Versions.Latest
	if latest == nil {
		return AgentIdentity{}, fmt.Errorf("%w: agent %q has no published versions", ErrResolution, fallbackName)
	}

	identity := AgentIdentity{Name: latest.Name, Version: latest.Version}
	if identity.Name == "" {
		identity.Name = agent.Name
	}
	if !identity.Valid() {
		return AgentIdentity{}, fmt.Errorf("%w: latest version of agent %q is incomplete (%q)", ErrResolution, fallbackName, identity.String())
	}

	log.Info("Discovered agent", "agent", identity.String())
	return identity, nil
}
