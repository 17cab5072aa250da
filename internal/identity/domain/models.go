// Package domain holds the identity spine: the bidirectional crosswalk
// between CRM accounts and billing customers produced by the three-pass
// resolver, plus the append-only decision log that makes arbitration
// replayable.
package domain

// MatchType classifies how (or whether) an account and customer were linked.
type MatchType string

const (
	MatchExact          MatchType = "exact"
	MatchFuzzyConfirmed MatchType = "fuzzy_confirmed"
	MatchEmailSignal    MatchType = "email_signal"
	MatchUnmatched      MatchType = "unmatched"
)

// Pass names the resolver pass that produced a candidate or link.
type Pass string

const (
	PassExact Pass = "exact"
	PassFuzzy Pass = "fuzzy"
	PassEmail Pass = "email_signal"
)

// Link is one entry in the identity spine: a confirmed (or explicitly
// unmatched) pairing of an account and a customer.
type Link struct {
	RsxID      string    `json:"rsx_id"`
	AccountID  string    `json:"account_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	MatchType  MatchType `json:"match_type"`
	Confidence float64   `json:"confidence"`
	Evidence   string    `json:"evidence"`
}

// ReviewCandidate is one entry in the FIFO needs_review queue: a fuzzy-pass
// pairing below auto-accept confidence, awaiting operator arbitration.
type ReviewCandidate struct {
	MatchID    string  `json:"match_id"`
	AccountID  string  `json:"account_id"`
	CustomerID string  `json:"customer_id"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// Decision ∈ {confirmed, rejected} is the operator's disposition of a
// review candidate.
type Decision string

const (
	DecisionConfirmed Decision = "confirmed"
	DecisionRejected  Decision = "rejected"
)

// DecisionEntry is one append-only entry in the decision log. Replaying
// Resolve with the same log reproduces the same spine (I-6 in the
// universal invariants: identity idempotence).
type DecisionEntry struct {
	MatchID  string   `json:"match_id"`
	Decision Decision `json:"decision"`
}

// Spine is the full output of a resolve() call: the confirmed links plus
// the three bucketed lists the session layer displays.
type Spine struct {
	Links         []Link            `json:"links"`
	AutoMatched   []Link            `json:"auto_matched"`
	NeedsReview   []ReviewCandidate `json:"needs_review"`
	Unmatched     []Link            `json:"unmatched"`
	DecisionLog   []DecisionEntry   `json:"decision_log"`
}

// LinkByAccountID indexes the spine's links by account_id for O(1) lookup
// during lifecycle and reconciliation.
func (s Spine) LinkByAccountID() map[string]Link {
	out := make(map[string]Link, len(s.Links))
	for _, l := range s.Links {
		out[l.AccountID] = l
	}
	return out
}
