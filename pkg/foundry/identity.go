package foundry

import (
	"fmt"
	"strings"
)

const agentReferenceType = "agent_reference"

// AgentIdentity names one published version of a Foundry agent.
type AgentIdentity struct {
	Name    string
	Version string
}

// String returns the identity in name:version form.
func (id AgentIdentity) String() string {
	return id.Name + ":" + id.Version
}

// Valid reports whether both parts are set.
func (id AgentIdentity) Valid() bool {
	return id.Name != "" && id.Version != ""
}

// Reference returns the wire form attached to every completion request.
func (id AgentIdentity) Reference() AgentReference {
	return AgentReference{Type: agentReferenceType, Name: id.Name, Version: id.Version}
}

// AgentReference is sent under the "agent" key of a responses request so the
// service routes the request to the agent instead of a bare model.
type AgentReference struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ParseAgentID splits an explicit "name:version" identifier. Exactly one
// separator is accepted and neither side may be empty.
func ParseAgentID(id string) (AgentIdentity, error) {
	if n := strings.Count(id, ":"); n != 1 {
		return AgentIdentity{}, fmt.Errorf("%w: agent id %q must have the form name:version (found %d separators)", ErrResolution, id, n)
	}
	name, version, _ := strings.Cut(id, ":")
	identity := AgentIdentity{Name: name, Version: version}
	if !identity.Valid() {
		return AgentIdentity{}, fmt.Errorf("%w: agent id %q has an empty name or version", ErrResolution, id)
	}
	return identity, nil
}
