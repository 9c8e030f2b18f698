// Package prompt implements the system-prompt builder: the text contract
// handed to the AI dispatcher's model call.
package prompt

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

// maxContentExcerpt bounds the incoming event's content preview embedded in
// the per-event prompt form.
const maxContentExcerpt = 500

// Builder assembles the static and per-event prompt forms from the agent's
// identity, its personality text, and the live skill registry.
type Builder struct {
	AgentName    string
	AgentPubKey  [32]byte
	AgentAddress string
	Personality  string
	Skills       *skill.Registry
}

// New constructs a Builder.
func New(name string, pubKey [32]byte, address, personality string, skills *skill.Registry) *Builder {
	return &Builder{
		AgentName:    name,
		AgentPubKey:  pubKey,
		AgentAddress: address,
		Personality:  personality,
		Skills:       skills,
	}
}

// Static renders the identity + skill enumeration + decision framework +
// personality form that is common to every model call.
func (b *Builder) Static() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, an autonomous agent in a mesh of agents.\n", b.AgentName)
	fmt.Fprintf(&sb, "Identity: pubkey=%s address=%s\n\n", hex.EncodeToString(b.AgentPubKey[:]), b.AgentAddress)

	sb.WriteString("Available skills:\n")
	for _, s := range sortedSummaries(b.Skills.Summary()) {
		fmt.Fprintf(&sb, "- %s: %s\n", s.Name, s.Description)
		for _, p := range s.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&sb, "    param %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}

	sb.WriteString("\nDecision rule: choose exactly one skill, call it with the event's context, or return a reasoned refusal.\n")

	if b.Personality != "" {
		sb.WriteString("\nPersonality: ")
		sb.WriteString(b.Personality)
		sb.WriteString("\n")
	}

	return sb.String()
}

// EventView is the bounded description of an incoming event embedded in the
// per-event prompt form.
type EventView struct {
	Kind         int
	SourcePeerID string
	Amount       *big.Int
	Destination  string
	Event        *event.Event
}

// ForEvent renders the static form plus a bounded description of the
// incoming event: kind, source peer id, amount, destination, a truncated
// content excerpt, and a tag-count summary.
func (b *Builder) ForEvent(v EventView) string {
	var sb strings.Builder
	sb.WriteString(b.Static())

	sb.WriteString("\nIncoming event:\n")
	fmt.Fprintf(&sb, "  kind: %d\n", v.Kind)
	fmt.Fprintf(&sb, "  source peer: %s\n", v.SourcePeerID)
	if v.Amount != nil {
		fmt.Fprintf(&sb, "  amount: %s\n", v.Amount.String())
	}
	if v.Destination != "" {
		fmt.Fprintf(&sb, "  destination: %s\n", v.Destination)
	}

	if v.Event != nil {
		fmt.Fprintf(&sb, "  content excerpt: %q\n", truncate(v.Event.Content, maxContentExcerpt))
		fmt.Fprintf(&sb, "  tag counts: %s\n", formatTagCounts(v.Event.TagCounts()))
	}

	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatTagCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

// sortedSummaries returns summaries ordered by skill name so the rendered
// prompt is deterministic across calls.
func sortedSummaries(in []skill.Summary) []skill.Summary {
	out := make([]skill.Summary, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
