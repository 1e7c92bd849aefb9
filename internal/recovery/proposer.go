package recovery

import (
	"context"
	"errors"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// ErrNoProposal means no proposal source is available for the step.
var ErrNoProposal = errors.New("no action proposal available")

// Proposal is a candidate completion for a step.
type Proposal struct {
	Response string
	Image    []byte
}

// Proposer supplies candidate completions for an intent. Reset clears any
// conversational state and is called once per recovery episode.
type Proposer interface {
	Propose(ctx context.Context, current *screen.Screen, step flow.Step) (Proposal, error)
	Reset()
}

// AgentProposer asks a live vision agent.
type AgentProposer struct {
	Agent ports.Agent
}

// Propose implements Proposer.
func (p *AgentProposer) Propose(ctx context.Context, current *screen.Screen, step flow.Step) (Proposal, error) {
	if p == nil || p.Agent == nil {
		return Proposal{}, ErrNoProposal
	}
	image, response, err := p.Agent.Complete(ctx, current, step.Description)
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{Response: response, Image: image}, nil
}

// Reset implements Proposer.
func (p *AgentProposer) Reset() {
	if p != nil && p.Agent != nil {
		p.Agent.Reset()
	}
}

// ReplayProposer returns pre-recorded responses in order, repeating the last
// one once they run out.
type ReplayProposer struct {
	responses []string
	next      int
}

// NewReplayProposer wraps recorded responses.
func NewReplayProposer(responses []string) *ReplayProposer {
	return &ReplayProposer{responses: responses}
}

// Propose implements Proposer.
func (p *ReplayProposer) Propose(_ context.Context, current *screen.Screen, _ flow.Step) (Proposal, error) {
	if p == nil || len(p.responses) == 0 {
		return Proposal{}, ErrNoProposal
	}
	idx := min(p.next, len(p.responses)-1)
	p.next++

	var image []byte
	if current != nil {
		image = current.Image
	}
	return Proposal{Response: p.responses[idx], Image: image}, nil
}

// Reset implements Proposer.
func (p *ReplayProposer) Reset() {
	if p != nil {
		p.next = 0
	}
}
