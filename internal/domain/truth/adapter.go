// Package truth enforces the truth-compliance discipline: every autonomous
// action carries confidence and evidence metadata, absolute claims are
// softened, and uncertainty is disclosed to reviewers. All functions are
// deterministic string/number transforms; none of this calls a model.
package truth

import (
	"fmt"
	"strings"

	"github.com/wardenlabs/warden/internal/domain/proposal"
)

// DefaultConfidence is assigned when the planner omits a confidence.
const DefaultConfidence = 0.7

// syntheticSourceReliability is the reliability assigned to the synthesized
// "user request" citation when the planner cites nothing.
const syntheticSourceReliability = 0.9

// softeners maps absolute phrasing to hedged replacements, applied in order.
// "will definitely" must precede any future "definitely" entry so the longer
// phrase wins.
var softeners = []struct{ from, to string }{
	{"will definitely", "may"},
	{"guarantee", "expect"},
	{"always", "typically"},
	{"never", "rarely"},
}

// Adapt normalizes a proposal before guardrails run. It defaults a missing
// confidence, synthesizes a citation when none is given, and softens
// absolute claims in the reasoning. The returned disclaimers describe every
// normalization applied so reviewers see what the planner did not provide.
func Adapt(p proposal.ActionProposal) (proposal.ActionProposal, []string) {
	var disclaimers []string

	if p.Confidence == nil {
		c := DefaultConfidence
		p.Confidence = &c
		disclaimers = append(disclaimers,
			fmt.Sprintf("Planner reported no confidence; defaulted to %.1f.", DefaultConfidence))
	}

	if len(p.DataSources) == 0 {
		p.DataSources = []proposal.DataSource{{
			Name:        "user request",
			Reliability: syntheticSourceReliability,
			Recency:     "current",
		}}
		disclaimers = append(disclaimers,
			"No data sources cited; attributed to the triggering user request.")
	}

	if softened := SoftenClaims(p.Reasoning); softened != p.Reasoning {
		p.Reasoning = softened
		disclaimers = append(disclaimers,
			"Absolute claims in the reasoning were softened.")
	}

	return p, disclaimers
}

// SoftenClaims replaces absolute phrasing with hedged equivalents.
// The substitution is case-sensitive and purely textual.
func SoftenClaims(reasoning string) string {
	for _, s := range softeners {
		reasoning = strings.ReplaceAll(reasoning, s.from, s.to)
	}
	return reasoning
}
