package session

// GuardrailFlags are safety signals asserted on top of lexical mood
// inference, either by the remote provider or by internal checks. Flags
// only accumulate during a session; they are cleared on session reset.
type GuardrailFlags struct {
	CrisisDetected      bool            `json:"crisisDetected"`
	EscalationSuggested bool            `json:"escalationSuggested"`
	PolicyViolation     bool            `json:"policyViolation"`
	Extra               map[string]bool `json:"extra,omitempty"`
}

// Merge returns the union of both flag sets. Set flags never unset.
func (g GuardrailFlags) Merge(other GuardrailFlags) GuardrailFlags {
	merged := GuardrailFlags{
		CrisisDetected:      g.CrisisDetected || other.CrisisDetected,
		EscalationSuggested: g.EscalationSuggested || other.EscalationSuggested,
		PolicyViolation:     g.PolicyViolation || other.PolicyViolation,
	}
	if len(g.Extra) > 0 || len(other.Extra) > 0 {
		merged.Extra = make(map[string]bool, len(g.Extra)+len(other.Extra))
		for k, v := range g.Extra {
			if v {
				merged.Extra[k] = true
			}
		}
		for k, v := range other.Extra {
			if v {
				merged.Extra[k] = true
			}
		}
	}
	return merged
}

// CrisisIndicated reports whether any crisis-grade flag is set.
func (g GuardrailFlags) CrisisIndicated() bool {
	return g.CrisisDetected || g.EscalationSuggested
}
