package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/revspine/reconciler/internal/config"
	"github.com/revspine/reconciler/internal/identity/domain"
	"github.com/revspine/reconciler/internal/identity/normalize"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	"go.uber.org/zap"
)

// candidate is an (account, customer) pairing surfaced by the exact,
// fuzzy or email-signal pass, before thresholds and operator decisions
// are applied.
type candidate struct {
	matchID    string
	accountID  string
	customerID string
	pass       domain.Pass
	confidence float64
	evidence   string
}

// Service implements domain.Service for a single session: it holds the
// session's accounts/customers and its append-only decision log, and
// recomputes the spine by replaying Resolve every time either changes.
// One instance is constructed per session (see internal/session), not
// shared across sessions — this mirrors the spec's "session owns all
// derived entities" rule.
type Service struct {
	mu sync.Mutex

	log    *zap.Logger
	engine func() config.EngineConfig

	accounts  []ingestiondomain.Account
	customers []ingestiondomain.Customer

	decisionLog []domain.DecisionEntry
	cached      domain.Spine
}

// NewService constructs a fresh per-session identity resolver. engineCfg
// is a snapshot accessor so a hot-reloaded threshold change doesn't alter
// an in-flight session's determinism.
func NewService(log *zap.Logger, engineCfg func() config.EngineConfig) *Service {
	return &Service{
		log:    log.Named("identity.service"),
		engine: engineCfg,
	}
}

func (s *Service) Resolve(ctx context.Context, accounts []ingestiondomain.Account, customers []ingestiondomain.Customer) (domain.Spine, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = accounts
	s.customers = customers
	s.decisionLog = nil
	return s.recompute(), nil
}

func (s *Service) Decide(ctx context.Context, matchID string, decision domain.Decision) (domain.Spine, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, c := range s.currentCandidatesLocked() {
		if c.matchID == matchID && c.pass == domain.PassFuzzy {
			found = true
			break
		}
	}
	if !found {
		return domain.Spine{}, domain.ErrUnknownMatch
	}

	s.decisionLog = append(s.decisionLog, domain.DecisionEntry{MatchID: matchID, Decision: decision})
	return s.recompute(), nil
}

func (s *Service) Undo(ctx context.Context) (domain.Spine, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.decisionLog) == 0 {
		return domain.Spine{}, domain.ErrNoDecisions
	}
	s.decisionLog = s.decisionLog[:len(s.decisionLog)-1]
	return s.recompute(), nil
}

func (s *Service) Reset(ctx context.Context) (domain.Spine, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decisionLog = nil
	return s.recompute(), nil
}

func (s *Service) Get(ctx context.Context) (domain.Spine, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached, nil
}

// currentCandidatesLocked recomputes the raw (pre-decision) candidate set.
// Callers must hold s.mu.
func (s *Service) currentCandidatesLocked() []candidate {
	return buildCandidates(s.accounts, s.customers, s.engine())
}

// recompute replays the three passes, then applies the decision log on
// top of the fuzzy-pass candidates, and rebuilds the bucketed spine.
// Callers must hold s.mu.
func (s *Service) recompute() domain.Spine {
	cfg := s.engine()
	candidates := buildCandidates(s.accounts, s.customers, cfg)

	linkedAccount := make(map[string]domain.Link)
	linkedCustomer := make(map[string]struct{})

	var autoMatched []domain.Link
	var needsReview []domain.ReviewCandidate

	decided := make(map[string]domain.Decision, len(s.decisionLog))
	for _, d := range s.decisionLog {
		decided[d.MatchID] = d.Decision
	}

	for _, c := range candidates {
		switch c.pass {
		case domain.PassExact, domain.PassEmail:
			mt := domain.MatchExact
			if c.pass == domain.PassEmail {
				mt = domain.MatchEmailSignal
			}
			link := domain.Link{
				RsxID:      rsxID(c.accountID),
				AccountID:  c.accountID,
				CustomerID: c.customerID,
				MatchType:  mt,
				Confidence: c.confidence,
				Evidence:   c.evidence,
			}
			linkedAccount[c.accountID] = link
			linkedCustomer[c.customerID] = struct{}{}
			autoMatched = append(autoMatched, link)
		case domain.PassFuzzy:
			if c.confidence >= cfg.Fuzzy.AutoAcceptAbove {
				link := domain.Link{
					RsxID:      rsxID(c.accountID),
					AccountID:  c.accountID,
					CustomerID: c.customerID,
					MatchType:  domain.MatchFuzzyConfirmed,
					Confidence: c.confidence,
					Evidence:   c.evidence,
				}
				linkedAccount[c.accountID] = link
				linkedCustomer[c.customerID] = struct{}{}
				autoMatched = append(autoMatched, link)
				continue
			}

			switch decided[c.matchID] {
			case domain.DecisionConfirmed:
				link := domain.Link{
					RsxID:      rsxID(c.accountID),
					AccountID:  c.accountID,
					CustomerID: c.customerID,
					MatchType:  domain.MatchFuzzyConfirmed,
					Confidence: c.confidence,
					Evidence:   c.evidence,
				}
				linkedAccount[c.accountID] = link
				linkedCustomer[c.customerID] = struct{}{}
				autoMatched = append(autoMatched, link)
			case domain.DecisionRejected:
				// both sides stay unmatched; candidate leaves the queue.
			default:
				needsReview = append(needsReview, domain.ReviewCandidate{
					MatchID:    c.matchID,
					AccountID:  c.accountID,
					CustomerID: c.customerID,
					Confidence: c.confidence,
					Evidence:   c.evidence,
				})
			}
		}
	}

	sort.Slice(needsReview, func(i, j int) bool {
		if needsReview[i].Confidence != needsReview[j].Confidence {
			return needsReview[i].Confidence > needsReview[j].Confidence
		}
		return needsReview[i].AccountID < needsReview[j].AccountID
	})

	var unmatched []domain.Link
	for _, a := range s.accounts {
		if _, ok := linkedAccount[a.AccountID]; ok {
			continue
		}
		if inReviewQueue(needsReview, a.AccountID) {
			continue
		}
		unmatched = append(unmatched, domain.Link{
			RsxID:     rsxID(a.AccountID),
			AccountID: a.AccountID,
			MatchType: domain.MatchUnmatched,
		})
	}

	sort.Slice(autoMatched, func(i, j int) bool { return autoMatched[i].AccountID < autoMatched[j].AccountID })
	sort.Slice(unmatched, func(i, j int) bool { return unmatched[i].AccountID < unmatched[j].AccountID })

	allLinks := make([]domain.Link, 0, len(autoMatched)+len(unmatched))
	allLinks = append(allLinks, autoMatched...)
	allLinks = append(allLinks, unmatched...)
	sort.Slice(allLinks, func(i, j int) bool { return allLinks[i].AccountID < allLinks[j].AccountID })

	spine := domain.Spine{
		Links:       allLinks,
		AutoMatched: autoMatched,
		NeedsReview: needsReview,
		Unmatched:   unmatched,
		DecisionLog: append([]domain.DecisionEntry(nil), s.decisionLog...),
	}
	s.cached = spine

	s.log.Debug("identity spine recomputed",
		zap.Int("auto_matched", len(autoMatched)),
		zap.Int("needs_review", len(needsReview)),
		zap.Int("unmatched", len(unmatched)),
	)

	return spine
}

func inReviewQueue(queue []domain.ReviewCandidate, accountID string) bool {
	for _, c := range queue {
		if c.AccountID == accountID {
			return true
		}
	}
	return false
}

func rsxID(accountID string) string {
	return "rsx_" + accountID
}

// buildCandidates runs the three deterministic passes over the accounts
// and customers not yet linked by an earlier pass, returning every
// candidate link (exact and email-signal are already final; fuzzy pairs
// still need auto-accept/needs-review disposition by the caller).
func buildCandidates(accounts []ingestiondomain.Account, customers []ingestiondomain.Customer, cfg config.EngineConfig) []candidate {
	sortedAccounts := append([]ingestiondomain.Account(nil), accounts...)
	sort.Slice(sortedAccounts, func(i, j int) bool { return sortedAccounts[i].AccountID < sortedAccounts[j].AccountID })

	remainingAccounts := make(map[string]ingestiondomain.Account, len(sortedAccounts))
	for _, a := range sortedAccounts {
		remainingAccounts[a.AccountID] = a
	}
	remainingCustomers := make(map[string]ingestiondomain.Customer, len(customers))
	for _, c := range customers {
		remainingCustomers[c.CustomerID] = c
	}

	var out []candidate

	// Pass 1: exact.
	normAccount := make(map[string]string, len(sortedAccounts))
	for _, a := range sortedAccounts {
		normAccount[a.AccountID] = normalize.Name(a.AccountName, cfg)
	}
	normCustomer := make(map[string]string, len(customers))
	for _, c := range customers {
		normCustomer[c.CustomerID] = normalize.Name(c.CustomerName, cfg)
	}

	for _, a := range sortedAccounts {
		if _, ok := remainingAccounts[a.AccountID]; !ok {
			continue
		}
		for _, c := range customers {
			if _, ok := remainingCustomers[c.CustomerID]; !ok {
				continue
			}
			if normAccount[a.AccountID] == "" || normCustomer[c.CustomerID] == "" {
				continue
			}
			if normAccount[a.AccountID] == normCustomer[c.CustomerID] {
				out = append(out, candidate{
					matchID:    fmt.Sprintf("exact:%s:%s", a.AccountID, c.CustomerID),
					accountID:  a.AccountID,
					customerID: c.CustomerID,
					pass:       domain.PassExact,
					confidence: 1.0,
					evidence:   "normalized name equality",
				})
				delete(remainingAccounts, a.AccountID)
				delete(remainingCustomers, c.CustomerID)
				break
			}
		}
	}

	// Pass 2: fuzzy, greedy by descending score, ties by account_id.
	type pair struct {
		accountID  string
		customerID string
		score      float64
	}
	var pairs []pair
	for _, a := range sortedAccounts {
		if _, ok := remainingAccounts[a.AccountID]; !ok {
			continue
		}
		for _, c := range customers {
			if _, ok := remainingCustomers[c.CustomerID]; !ok {
				continue
			}
			score := normalize.TokenSetSimilarity(normAccount[a.AccountID], normCustomer[c.CustomerID])
			if score >= cfg.Fuzzy.CandidateAbove {
				pairs = append(pairs, pair{a.AccountID, c.CustomerID, score})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].accountID < pairs[j].accountID
	})
	for _, p := range pairs {
		if _, ok := remainingAccounts[p.accountID]; !ok {
			continue
		}
		if _, ok := remainingCustomers[p.customerID]; !ok {
			continue
		}
		out = append(out, candidate{
			matchID:    fmt.Sprintf("fuzzy:%s:%s", p.accountID, p.customerID),
			accountID:  p.accountID,
			customerID: p.customerID,
			pass:       domain.PassFuzzy,
			confidence: p.score,
			evidence:   fmt.Sprintf("token-set similarity %.4f", p.score),
		})
		delete(remainingAccounts, p.accountID)
		delete(remainingCustomers, p.customerID)
	}

	// Pass 3: email-signal, unique one-to-one domain match only.
	accountsByDomain := make(map[string][]string)
	for _, a := range sortedAccounts {
		if _, ok := remainingAccounts[a.AccountID]; !ok {
			continue
		}
		if a.EmailDomain == "" {
			continue
		}
		accountsByDomain[a.EmailDomain] = append(accountsByDomain[a.EmailDomain], a.AccountID)
	}
	customersByDomain := make(map[string][]string)
	for _, c := range customers {
		if _, ok := remainingCustomers[c.CustomerID]; !ok {
			continue
		}
		if c.EmailDomain == "" {
			continue
		}
		customersByDomain[c.EmailDomain] = append(customersByDomain[c.EmailDomain], c.CustomerID)
	}
	var domains []string
	for d := range accountsByDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		accts := accountsByDomain[d]
		custs := customersByDomain[d]
		if len(accts) == 1 && len(custs) == 1 {
			out = append(out, candidate{
				matchID:    fmt.Sprintf("email:%s:%s", accts[0], custs[0]),
				accountID:  accts[0],
				customerID: custs[0],
				pass:       domain.PassEmail,
				confidence: 0.70,
				evidence:   "unique shared email domain " + d,
			})
			delete(remainingAccounts, accts[0])
			delete(remainingCustomers, custs[0])
		}
	}

	return out
}
