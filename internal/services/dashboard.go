package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"financy/internal/balance"
	"financy/internal/cache"
	"financy/internal/core"
	"financy/internal/repo"
)

// DashboardStores is what MonthSummary reads from.
type DashboardStores interface {
	repo.AccountStore
	repo.TransactionStore
	repo.BillStore
}

// MonthSummary is the dashboard view of one month.
type MonthSummary struct {
	Year             int                      `json:"year"`
	Month            int                      `json:"month"`
	TotalBalance     core.Money               `json:"total_balance"`
	Accounts         []balance.AccountBalance `json:"accounts"`
	Totals           balance.MonthlyTotals    `json:"totals"`
	PendingBills     core.Money               `json:"pending_bills"`
	PendingBillCount int                      `json:"pending_bill_count"`
	ProjectedBalance core.Money               `json:"projected_balance"`
}

// DashboardService assembles month summaries. Results are cached per
// period until Invalidate is called or the entry expires.
type DashboardService struct {
	store DashboardStores
	cache *cache.LRUCache[MonthSummary]
}

// NewDashboardService creates the service. A nil cache disables caching.
func NewDashboardService(store DashboardStores, c *cache.LRUCache[MonthSummary]) *DashboardService {
	return &DashboardService{store: store, cache: c}
}

func summaryKey(p core.Period) string {
	return fmt.Sprintf("summary:%04d-%02d", p.Year, p.Month)
}

// MonthSummary loads accounts, confirmed transactions and pending bills
// concurrently and derives the dashboard figures for period.
func (s *DashboardService) MonthSummary(ctx context.Context, period core.Period) (MonthSummary, error) {
	if !period.Valid() {
		return MonthSummary{}, core.ErrInvalidMonth
	}
	key := summaryKey(period)
	if s.cache != nil {
		if sum, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "Dashboard cache hit", "key", key)
			return sum, nil
		}
	}

	var (
		accounts []core.Account
		allTxs   []core.Transaction
		monthTxs []core.Transaction
		bills    []core.Bill
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gctx)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		allTxs, err = s.store.ListTransactions(gctx, repo.TransactionFilter{Status: core.StatusConfirmed})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		monthTxs, err = s.store.ListTransactions(gctx, repo.TransactionFilter{
			From:   period.Start(),
			To:     period.End(),
			Status: core.StatusConfirmed,
		})
		if err != nil {
			return fmt.Errorf("list month transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bills, err = s.store.ListBills(gctx, core.BillPending)
		if err != nil {
			return fmt.Errorf("list bills: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return MonthSummary{}, err
	}

	deltas := balance.BuildAccountBalanceMap(allTxs)
	sum := MonthSummary{
		Year:             period.Year,
		Month:            period.Month,
		TotalBalance:     balance.TotalBalance(accounts, deltas),
		Accounts:         balance.AccountBalances(accounts, deltas),
		Totals:           balance.ComputeMonthlyTotals(monthTxs),
		PendingBillCount: len(bills),
	}
	for _, b := range bills {
		sum.PendingBills = sum.PendingBills.Add(b.Amount)
	}
	sum.ProjectedBalance = balance.ProjectedBalance(sum.TotalBalance, sum.PendingBills)

	if s.cache != nil {
		s.cache.Set(key, sum)
	}
	return sum, nil
}

// Invalidate drops every cached summary. Total balance is all-time, so any
// write can change every month.
func (s *DashboardService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// CacheStats reports cache counters; zero when caching is disabled.
func (s *DashboardService) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}
