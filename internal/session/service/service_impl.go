package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/revspine/reconciler/internal/cache"
	"github.com/revspine/reconciler/internal/config"
	exclusiondomain "github.com/revspine/reconciler/internal/exclusion/domain"
	identitydomain "github.com/revspine/reconciler/internal/identity/domain"
	identityservice "github.com/revspine/reconciler/internal/identity/service"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	lifecycledomain "github.com/revspine/reconciler/internal/lifecycle/domain"
	"github.com/revspine/reconciler/internal/observability/metrics"
	reconciliationdomain "github.com/revspine/reconciler/internal/reconciliation/domain"
	domain "github.com/revspine/reconciler/internal/session/domain"
	"github.com/revspine/reconciler/internal/session/store"
	scoringdomain "github.com/revspine/reconciler/internal/scoring/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// sessionState is the in-process-only working state for one session: the
// stateful identity resolver instance (accounts/customers/decision log)
// and a cooperative cancellation flag for its background worker. It is
// not persisted directly — every mutation is mirrored into the store so
// dashboard/status reads never depend on this cache surviving a restart.
type sessionState struct {
	mu          sync.Mutex
	identity    *identityservice.Service
	runToken    string
	canceled    atomic.Bool
	reviewDepth int
}

// Manager implements domain.Manager: the session layer the five-stage
// pipeline is driven through. One Manager instance is process-wide. The
// sessionState lock guards only the identity resolver; Analyze refuses to
// start while the session is processing, and a background run checks its
// runToken and canceled flag between stages. The pipeline itself runs
// without holding the lock.
type Manager struct {
	log    *zap.Logger
	store  *store.Store
	genID  *snowflake.Node
	engine *config.EngineConfigHolder
	cache  *cache.DashboardCache
	metrics *metrics.Metrics

	ingestion      ingestiondomain.Service
	lifecycle      lifecycledomain.Service
	reconciliation reconciliationdomain.Service
	scoring        scoringdomain.Service

	statesMu sync.Mutex
	states   map[string]*sessionState
}

type Params struct {
	fx.In

	Log            *zap.Logger
	Store          *store.Store
	GenID          *snowflake.Node
	Engine         *config.EngineConfigHolder
	Cache          *cache.DashboardCache
	Metrics        *metrics.Metrics
	Ingestion      ingestiondomain.Service
	Lifecycle      lifecycledomain.Service
	Reconciliation reconciliationdomain.Service
	Scoring        scoringdomain.Service
}

func NewManager(p Params) domain.Manager {
	return &Manager{
		log:            p.Log.Named("session.service"),
		store:          p.Store,
		genID:          p.GenID,
		engine:         p.Engine,
		cache:          p.Cache,
		metrics:        p.Metrics,
		ingestion:      p.Ingestion,
		lifecycle:      p.Lifecycle,
		reconciliation: p.Reconciliation,
		scoring:        p.Scoring,
		states:         make(map[string]*sessionState),
	}
}

// updateReviewDepth adjusts the review-queue gauge by the delta from the
// session's last known depth, since the underlying instrument only
// supports relative Add calls.
func (m *Manager) updateReviewDepth(ctx context.Context, st *sessionState, newLen int) {
	delta := int64(newLen - st.reviewDepth)
	st.reviewDepth = newLen
	if delta != 0 {
		m.metrics.SetReviewQueueDepth(ctx, delta)
	}
}

func (m *Manager) stateFor(sessionID string) *sessionState {
	m.statesMu.Lock()
	defer m.statesMu.Unlock()
	st, ok := m.states[sessionID]
	if !ok {
		st = &sessionState{}
		m.states[sessionID] = st
	}
	return st
}

func (m *Manager) Create(ctx context.Context, settings domain.Settings) (domain.Session, error) {
	if settings.PeriodEnd.Before(settings.PeriodStart) {
		return domain.Session{}, domain.ErrInvalidPeriod
	}
	if settings.ToleranceUSD == 0 {
		settings.ToleranceUSD = 1.00
	}
	if settings.Currency == "" {
		settings.Currency = "USD"
	}

	now := time.Now().UTC()
	session := domain.Session{
		ID:        m.genID.Generate().String(),
		Status:    domain.StatusCreated,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.Processing.SetStep("created", "completed", now)

	if err := m.persistSession(ctx, session); err != nil {
		return domain.Session{}, err
	}
	m.metrics.RecordSessionStarted(ctx)
	return session, nil
}

func (m *Manager) Validate(ctx context.Context, sessionID string, tables ingestiondomain.RawTables) (domain.ValidateResult, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return domain.ValidateResult{}, err
	}

	result, err := m.ingestion.Validate(ctx, tables)
	if err != nil {
		return domain.ValidateResult{}, err
	}

	out := domain.ValidateResult{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}
	m.metrics.RecordValidationErrors(ctx, "ingestion", len(result.Errors))
	if !result.Valid {
		session.Processing.Append("ingestion", fmt.Sprintf("validation failed with %d errors", len(result.Errors)), time.Now().UTC())
		if err := m.persistSession(ctx, session); err != nil {
			return domain.ValidateResult{}, err
		}
		return out, nil
	}

	m.metrics.RecordRowsIngested(ctx, "account", len(tables.Accounts))
	m.metrics.RecordRowsIngested(ctx, "customer", len(tables.Customers))
	m.metrics.RecordRowsIngested(ctx, "subscription", len(tables.Subscriptions))
	m.metrics.RecordRowsIngested(ctx, "invoice", len(tables.Invoices))
	m.metrics.RecordRowsIngested(ctx, "payment", len(tables.Payments))
	m.metrics.RecordRowsIngested(ctx, "credit_note", len(tables.CreditNotes))

	_ = m.store.PutData(ctx, sessionID, store.KindAccountsRaw, tables.Accounts)
	_ = m.store.PutData(ctx, sessionID, store.KindCustomersRaw, tables.Customers)
	_ = m.store.PutData(ctx, sessionID, store.KindSubscriptionsRaw, tables.Subscriptions)
	_ = m.store.PutData(ctx, sessionID, store.KindInvoicesRaw, tables.Invoices)
	_ = m.store.PutData(ctx, sessionID, store.KindPaymentsRaw, tables.Payments)
	_ = m.store.PutData(ctx, sessionID, store.KindCreditNotesRaw, tables.CreditNotes)

	st := m.stateFor(sessionID)
	st.mu.Lock()
	engineCfg := m.engine.Get()
	st.identity = identityservice.NewService(m.log, func() config.EngineConfig { return engineCfg })
	spine, err := st.identity.Resolve(ctx, tables.Accounts, tables.Customers)
	st.mu.Unlock()
	if err != nil {
		return domain.ValidateResult{}, err
	}
	if err := m.store.PutData(ctx, sessionID, store.KindIdentity, spine); err != nil {
		return domain.ValidateResult{}, err
	}

	out.IdentitySummary = domain.IdentitySummary{
		AutoMatched: len(spine.AutoMatched),
		NeedsReview: len(spine.NeedsReview),
		Unmatched:   len(spine.Unmatched),
	}
	m.updateReviewDepth(ctx, st, len(spine.NeedsReview))

	session.Processing.SetStep("ingestion", "completed", time.Now().UTC())
	if len(spine.NeedsReview) > 0 {
		session.Status = domain.StatusIdentityReview
		session.Processing.SetStep("identity", "needs_review", time.Now().UTC())
	} else {
		session.Processing.SetStep("identity", "completed", time.Now().UTC())
	}
	if err := m.persistSession(ctx, session); err != nil {
		return domain.ValidateResult{}, err
	}

	return out, nil
}

func (m *Manager) IdentityGet(ctx context.Context, sessionID string) (identitydomain.Spine, error) {
	st := m.stateFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.identity == nil {
		return identitydomain.Spine{}, domain.ErrSessionNotFound
	}
	return st.identity.Get(ctx)
}

func (m *Manager) IdentityDecide(ctx context.Context, sessionID, matchID string, decision identitydomain.Decision) (identitydomain.Spine, error) {
	st := m.stateFor(sessionID)
	st.mu.Lock()
	spine, err := func() (identitydomain.Spine, error) {
		if st.identity == nil {
			return identitydomain.Spine{}, domain.ErrSessionNotFound
		}
		return st.identity.Decide(ctx, matchID, decision)
	}()
	st.mu.Unlock()
	if err != nil {
		return identitydomain.Spine{}, err
	}
	m.metrics.RecordIdentityDecision(ctx, "fuzzy", string(decision))
	return spine, m.afterIdentityMutation(ctx, st, sessionID, spine)
}

func (m *Manager) IdentityUndo(ctx context.Context, sessionID string) (identitydomain.Spine, error) {
	st := m.stateFor(sessionID)
	st.mu.Lock()
	spine, err := func() (identitydomain.Spine, error) {
		if st.identity == nil {
			return identitydomain.Spine{}, domain.ErrSessionNotFound
		}
		return st.identity.Undo(ctx)
	}()
	st.mu.Unlock()
	if err != nil {
		return identitydomain.Spine{}, err
	}
	return spine, m.afterIdentityMutation(ctx, st, sessionID, spine)
}

func (m *Manager) IdentityReset(ctx context.Context, sessionID string) (identitydomain.Spine, error) {
	st := m.stateFor(sessionID)
	st.mu.Lock()
	spine, err := func() (identitydomain.Spine, error) {
		if st.identity == nil {
			return identitydomain.Spine{}, domain.ErrSessionNotFound
		}
		return st.identity.Reset(ctx)
	}()
	st.mu.Unlock()
	if err != nil {
		return identitydomain.Spine{}, err
	}
	m.updateReviewDepth(ctx, st, len(spine.NeedsReview))

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return identitydomain.Spine{}, err
	}
	session.Status = domain.StatusIdentityReview
	session.Processing.SetStep("identity", "reset", time.Now().UTC())
	session.Processing.Append("identity", "decision log reset; downstream artifacts discarded", time.Now().UTC())
	if err := m.persistSession(ctx, session); err != nil {
		return identitydomain.Spine{}, err
	}
	if err := m.store.PutData(ctx, sessionID, store.KindIdentity, spine); err != nil {
		return identitydomain.Spine{}, err
	}
	// Truncate downstream artifacts: a reset discards any completed run.
	_ = m.store.PutData(ctx, sessionID, store.KindSegments, []lifecycledomain.Segment{})
	_ = m.store.PutData(ctx, sessionID, store.KindReconciliation, reconciliationResult{})
	_ = m.store.PutData(ctx, sessionID, store.KindScore, scoringdomain.Result{})
	_ = m.store.PutData(ctx, sessionID, store.KindExclusions, []exclusiondomain.Exclusion{})

	return spine, nil
}

func (m *Manager) afterIdentityMutation(ctx context.Context, st *sessionState, sessionID string, spine identitydomain.Spine) error {
	if err := m.store.PutData(ctx, sessionID, store.KindIdentity, spine); err != nil {
		return err
	}
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	m.updateReviewDepth(ctx, st, len(spine.NeedsReview))
	if len(spine.NeedsReview) == 0 {
		if session.Status == domain.StatusIdentityReview {
			session.Status = domain.StatusCreated
		}
		session.Processing.SetStep("identity", "completed", now)
	} else {
		session.Status = domain.StatusIdentityReview
		session.Processing.SetStep("identity", "needs_review", now)
	}
	return m.persistSession(ctx, session)
}

// reconciliationResult mirrors reconciliationdomain.Result but without the
// unexported exclusion log internals, so it round-trips through JSON.
type reconciliationResult struct {
	Allocations []reconciliationdomain.Allocation      `json:"allocations"`
	Variances   []reconciliationdomain.SegmentVariance `json:"variances"`
}

func (m *Manager) Analyze(ctx context.Context, sessionID string, bypassReview bool) error {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == domain.StatusProcessing {
		return domain.ErrAnalysisRunning
	}

	st := m.stateFor(sessionID)
	st.mu.Lock()
	if st.identity == nil {
		st.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	spine, err := st.identity.Get(ctx)
	st.mu.Unlock()
	if err != nil {
		return err
	}
	if len(spine.NeedsReview) > 0 && !bypassReview {
		return identitydomain.ErrReviewPending
	}

	st.runToken = uuid.NewString()
	st.canceled.Store(false)
	runToken := st.runToken

	session.Status = domain.StatusProcessing
	session.Processing.SetStep("lifecycle", "running", time.Now().UTC())
	if err := m.persistSession(ctx, session); err != nil {
		return err
	}

	go m.runPipeline(context.Background(), sessionID, runToken, spine)
	return nil
}

func (m *Manager) runPipeline(ctx context.Context, sessionID, runToken string, spine identitydomain.Spine) {
	st := m.stateFor(sessionID)

	fail := func(stepErr error) {
		session, err := m.loadSession(ctx, sessionID)
		if err != nil {
			m.log.Error("failed to load session after pipeline error", zap.Error(err))
			return
		}
		session.Status = domain.StatusError
		session.Processing.Error = stepErr.Error()
		session.Processing.Append("error", stepErr.Error(), time.Now().UTC())
		_ = m.persistSession(ctx, session)
	}

	cancelled := func() bool {
		return st.runToken != runToken || st.canceled.Load()
	}

	var subscriptions []ingestiondomain.Subscription
	if err := m.store.GetData(ctx, sessionID, store.KindSubscriptionsRaw, &subscriptions); err != nil {
		fail(fmt.Errorf("loading subscriptions: %w", err))
		return
	}

	linkByAccount := spine.LinkByAccountID()
	unknownRsx := make(map[string]bool)
	subCtxs := make([]lifecycledomain.SubscriptionContext, 0, len(subscriptions))
	for _, sub := range subscriptions {
		link, ok := linkByAccount[sub.AccountID]
		rsxID := "rsx_" + sub.AccountID
		if ok {
			rsxID = link.RsxID
		}
		if !ok || link.MatchType == identitydomain.MatchUnmatched {
			unknownRsx[rsxID] = true
		}
		subCtxs = append(subCtxs, lifecycledomain.SubscriptionContext{Subscription: sub, RsxID: rsxID})
	}

	if cancelled() {
		m.revertToPreRun(ctx, sessionID)
		return
	}

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		fail(err)
		return
	}
	lifecycleStart := time.Now()
	lifecycleResult, err := m.lifecycle.BuildSegments(ctx, subCtxs, lifecycledomain.Period{
		Start: session.Settings.PeriodStart,
		End:   session.Settings.PeriodEnd,
	})
	m.metrics.ObserveStageDuration(ctx, "lifecycle", time.Since(lifecycleStart))
	if err != nil {
		fail(fmt.Errorf("lifecycle stage: %w", err))
		return
	}
	if err := m.store.PutData(ctx, sessionID, store.KindSegments, lifecycleResult.Segments); err != nil {
		fail(err)
		return
	}
	session.Processing.SetStep("lifecycle", "completed", time.Now().UTC())
	session.Processing.SetStep("reconciliation", "running", time.Now().UTC())
	_ = m.persistSession(ctx, session)

	if cancelled() {
		m.revertToPreRun(ctx, sessionID)
		return
	}

	var invoices []ingestiondomain.Invoice
	var creditNotes []ingestiondomain.CreditNote
	var payments []ingestiondomain.Payment
	if err := m.store.GetData(ctx, sessionID, store.KindInvoicesRaw, &invoices); err != nil {
		fail(err)
		return
	}
	if err := m.store.GetData(ctx, sessionID, store.KindCreditNotesRaw, &creditNotes); err != nil {
		fail(err)
		return
	}
	if err := m.store.GetData(ctx, sessionID, store.KindPaymentsRaw, &payments); err != nil {
		fail(err)
		return
	}

	linkByCustomer := make(map[string]identitydomain.Link, len(spine.Links))
	for _, l := range spine.Links {
		if l.CustomerID != "" {
			linkByCustomer[l.CustomerID] = l
		}
	}

	invoicesByRsx := make(map[string][]ingestiondomain.Invoice)
	var orphanInvoiceExclusions exclusiondomain.Log
	for _, inv := range invoices {
		if link, ok := linkByCustomer[inv.CustomerID]; ok {
			invoicesByRsx[link.RsxID] = append(invoicesByRsx[link.RsxID], inv)
		} else {
			orphanInvoiceExclusions.Add(exclusiondomain.RecordInvoice, inv.InvoiceID, exclusiondomain.ReasonAllocationAmbiguous,
				"customer not linked to any account", time.Now().UTC())
		}
	}
	creditNotesByRsx := make(map[string][]ingestiondomain.CreditNote)
	for _, cn := range creditNotes {
		if link, ok := linkByCustomer[cn.CustomerID]; ok {
			creditNotesByRsx[link.RsxID] = append(creditNotesByRsx[link.RsxID], cn)
		} else {
			orphanInvoiceExclusions.Add(exclusiondomain.RecordCreditNote, cn.CreditNoteID, exclusiondomain.ReasonCreditNoteUnallocated,
				"customer not linked to any account", time.Now().UTC())
		}
	}
	paymentsByInvoice := make(map[string][]ingestiondomain.Payment)
	for _, p := range payments {
		paymentsByInvoice[p.InvoiceID] = append(paymentsByInvoice[p.InvoiceID], p)
	}

	engineCfg := m.engine.Get()
	reconInput := reconciliationdomain.Input{
		Segments:            lifecycleResult.Segments,
		InvoicesByRsxID:     invoicesByRsx,
		CreditNotesByRsxID:  creditNotesByRsx,
		PaymentsByInvoiceID: paymentsByInvoice,
		UnknownRsxIDs:       unknownRsx,
		ToleranceUSD:        decimal.NewFromFloat(session.Settings.ToleranceUSD),
	}
	reconStart := time.Now()
	reconResult, err := m.reconciliation.Reconcile(ctx, reconInput)
	m.metrics.ObserveStageDuration(ctx, "reconciliation", time.Since(reconStart))
	if err != nil {
		fail(fmt.Errorf("reconciliation stage: %w", err))
		return
	}
	if err := m.store.PutData(ctx, sessionID, store.KindReconciliation, reconciliationResult{
		Allocations: reconResult.Allocations,
		Variances:   reconResult.Variances,
	}); err != nil {
		fail(err)
		return
	}

	allExclusions := lifecycleResult.Exclusions
	allExclusions.Merge(&reconResult.Exclusions)
	allExclusions.Merge(&orphanInvoiceExclusions)
	if err := m.store.PutData(ctx, sessionID, store.KindExclusions, allExclusions.Entries()); err != nil {
		fail(err)
		return
	}

	session.Processing.SetStep("reconciliation", "completed", time.Now().UTC())
	session.Processing.SetStep("scoring", "running", time.Now().UTC())
	_ = m.persistSession(ctx, session)

	if cancelled() {
		m.revertToPreRun(ctx, sessionID)
		return
	}

	var accounts []ingestiondomain.Account
	if err := m.store.GetData(ctx, sessionID, store.KindAccountsRaw, &accounts); err != nil {
		fail(err)
		return
	}

	matchedLinks := 0
	for _, l := range spine.Links {
		if l.MatchType != identitydomain.MatchUnmatched {
			matchedLinks++
		}
	}
	matchedSubs := 0
	for _, sc := range subCtxs {
		if !unknownRsx[sc.RsxID] {
			matchedSubs++
		}
	}

	scoringStart := time.Now()
	scoringResult, err := m.scoring.Compute(ctx, scoringdomain.Input{
		TotalAccounts:        len(accounts),
		MatchedLinks:         matchedLinks,
		TotalSubscriptions:   len(subscriptions),
		MatchedSubscriptions: matchedSubs,
		Segments:             lifecycleResult.Segments,
		Variances:            reconResult.Variances,
		Allocations:          reconResult.Allocations,
		UnknownRsxIDs:        unknownRsx,
		Engine:               engineCfg,
		TopN:                 5,
	})
	m.metrics.ObserveStageDuration(ctx, "scoring", time.Since(scoringStart))
	if err != nil {
		fail(fmt.Errorf("scoring stage: %w", err))
		return
	}
	if err := m.store.PutData(ctx, sessionID, store.KindScore, scoringResult); err != nil {
		fail(err)
		return
	}
	m.metrics.ObserveCompositeScore(ctx, scoringResult.Band, scoringResult.CompositeScore)
	riskTotal := decimal.Zero
	for _, bucket := range scoringResult.RevenueAtRisk {
		riskTotal = riskTotal.Add(bucket.TotalAtRisk)
	}
	m.metrics.ObserveRevenueAtRisk(ctx, riskTotal.InexactFloat64())

	session.Status = domain.StatusCompleted
	session.Processing.SetStep("scoring", "completed", time.Now().UTC())
	session.Processing.Append("scoring", "analysis complete", time.Now().UTC())
	_ = m.persistSession(ctx, session)
}

func (m *Manager) revertToPreRun(ctx context.Context, sessionID string) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return
	}
	session.Status = domain.StatusIdentityReview
	session.Processing.Append("cancelled", "analysis cancelled, session restored to pre-run state", time.Now().UTC())
	_ = m.persistSession(ctx, session)
}

func (m *Manager) Cancel(ctx context.Context, sessionID string) error {
	_ = ctx
	st := m.stateFor(sessionID)
	st.canceled.Store(true)
	return nil
}

func (m *Manager) Status(ctx context.Context, sessionID string) (domain.ProcessingStatus, domain.Status, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return domain.ProcessingStatus{}, "", err
	}
	return session.Processing, session.Status, nil
}

func (m *Manager) Dashboard(ctx context.Context, sessionID string) (domain.DashboardResult, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return domain.DashboardResult{}, err
	}

	var cached domain.DashboardResult
	if hit, err := m.cache.Get(ctx, sessionID, session.Processing.CurrentStep, &cached); err == nil && hit {
		return cached, nil
	}

	var result scoringdomain.Result
	if err := m.store.GetData(ctx, sessionID, store.KindScore, &result); err != nil && err != store.ErrNotFound {
		return domain.DashboardResult{}, err
	}
	out := domain.DashboardResult{Status: session.Status, Scoring: result}
	_ = m.cache.Set(ctx, sessionID, session.Processing.CurrentStep, out)
	return out, nil
}

func (m *Manager) Accounts(ctx context.Context, sessionID string, filter domain.AccountFilter) ([]domain.AccountRow, error) {
	var recon reconciliationResult
	if err := m.store.GetData(ctx, sessionID, store.KindReconciliation, &recon); err != nil && err != store.ErrNotFound {
		return nil, err
	}
	accountVariances := reconciliationdomain.AggregateAccounts(recon.Variances)

	var spine identitydomain.Spine
	_ = m.store.GetData(ctx, sessionID, store.KindIdentity, &spine)
	customerByRsx := make(map[string]string)
	accountByRsx := make(map[string]string)
	for _, l := range spine.Links {
		customerByRsx[l.RsxID] = l.CustomerID
		accountByRsx[l.RsxID] = l.AccountID
	}

	out := make([]domain.AccountRow, 0, len(accountVariances))
	for _, a := range accountVariances {
		if filter.Status != "" && a.PrimaryVarianceType != filter.Status {
			continue
		}
		out = append(out, domain.AccountRow{
			RsxID:               a.RsxID,
			AccountID:           accountByRsx[a.RsxID],
			CustomerID:          customerByRsx[a.RsxID],
			PrimaryVarianceType: a.PrimaryVarianceType,
			TotalVariance:       a.TotalVariance.StringFixed(2),
		})
	}
	return out, nil
}

func (m *Manager) Lineage(ctx context.Context, sessionID, rsxID string) (domain.LineageResult, error) {
	var segments []lifecycledomain.Segment
	if err := m.store.GetData(ctx, sessionID, store.KindSegments, &segments); err != nil && err != store.ErrNotFound {
		return domain.LineageResult{}, err
	}
	var recon reconciliationResult
	if err := m.store.GetData(ctx, sessionID, store.KindReconciliation, &recon); err != nil && err != store.ErrNotFound {
		return domain.LineageResult{}, err
	}

	result := domain.LineageResult{RsxID: rsxID}
	segmentIDs := make(map[string]bool)
	for _, seg := range segments {
		if seg.RsxID == rsxID {
			result.Segments = append(result.Segments, seg)
			segmentIDs[seg.SegmentID] = true
		}
	}
	for _, a := range recon.Allocations {
		if segmentIDs[a.SegmentID] {
			result.Allocations = append(result.Allocations, a)
		}
	}
	for _, v := range recon.Variances {
		if v.RsxID == rsxID {
			result.Variances = append(result.Variances, v)
		}
	}
	return result, nil
}

func (m *Manager) Exclusions(ctx context.Context, sessionID string, reasonCode string) ([]domain.ExclusionRow, error) {
	var entries []exclusiondomain.Exclusion
	if err := m.store.GetData(ctx, sessionID, store.KindExclusions, &entries); err != nil && err != store.ErrNotFound {
		return nil, err
	}
	out := make([]domain.ExclusionRow, 0, len(entries))
	for _, e := range entries {
		if reasonCode != "" && string(e.ReasonCode) != reasonCode {
			continue
		}
		out = append(out, domain.ExclusionRow{
			RecordType:  string(e.RecordType),
			RecordID:    e.RecordID,
			ReasonCode:  string(e.ReasonCode),
			Description: e.Description,
		})
	}
	return out, nil
}

func (m *Manager) loadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	row, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	return decodeSession(row)
}

func (m *Manager) persistSession(ctx context.Context, session domain.Session) error {
	session.UpdatedAt = time.Now().UTC()
	row, err := encodeSession(session)
	if err != nil {
		return err
	}
	if err := m.store.PutSession(ctx, row); err != nil {
		return err
	}
	_ = m.cache.Invalidate(ctx, session.ID)
	return nil
}
