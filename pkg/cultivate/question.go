package cultivate

import (
	"fmt"

	"github.com/offis-rit/epistemic-core/pkg/kb"
)

// frequentMentionThreshold is the mention_count at or above which a concept's
// reflective question assumes familiarity rather than asking for a first
// introduction.
const frequentMentionThreshold = 3

var familiarTemplates = []string{
	"You've mentioned '%s' %d times. Is it still relevant to you?",
	"'%s' keeps coming up. Can you elaborate on its role?",
	"'%s' seems important. What would happen without it?",
}

var introductoryTemplates = []string{
	"You mentioned '%s'. Can you tell me more about it?",
	"What exactly do you mean by '%s'?",
	"Why does '%s' matter here?",
}

var relationTemplates = []string{
	"'%s' and '%s' seem related. Is there a direct connection?",
	"How does '%s' influence '%s'?",
	"Are there exceptions to the relation between '%s' and '%s'?",
}

var causalTemplates = []string{
	"Are there exceptions to '%s' causing '%s'?",
	"Is '%s' -> '%s' always true, or are there specific conditions?",
	"What else besides '%s' can cause '%s'?",
}

// questionForConcept generates a reflective question for a single concept,
// picking deterministically among templates by the concept's id so the
// same concept always yields the same question across calls.
func questionForConcept(c *kb.Concept) string {
	familiar := c.MentionCount >= frequentMentionThreshold
	templates := introductoryTemplates
	if familiar {
		templates = familiarTemplates
	}
	idx := templateIndex(c.ID) % len(templates)
	if familiar {
		return fmt.Sprintf(templates[idx], c.Label, c.MentionCount)
	}
	return fmt.Sprintf(templates[idx], c.Label)
}

// questionForRelation generates a reflective question about two
// co-occurring concepts that lack a strong explicit link.
func questionForRelation(source, target *kb.Concept) string {
	idx := (templateIndex(source.ID) + templateIndex(target.ID)) % len(relationTemplates)
	return fmt.Sprintf(relationTemplates[idx], source.Label, target.Label)
}

// questionForCausalLink generates a reflective question about a causal
// relation whose confidence is still low.
func questionForCausalLink(cause, effect *kb.Concept) string {
	idx := (templateIndex(cause.ID) + templateIndex(effect.ID)) % len(causalTemplates)
	return fmt.Sprintf(causalTemplates[idx], cause.Label, effect.Label)
}

// templateIndex derives a small deterministic integer from a concept id's
// first byte — stable across runs, varies across concepts.
func templateIndex(id string) int {
	if len(id) == 0 {
		return 0
	}
	return int(id[0])
}
