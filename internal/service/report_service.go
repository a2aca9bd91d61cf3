package service

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/model"
)

const recentTransactions = 5

// ReportService builds aggregate views over the cached directory, catalog
// and ledger.
type ReportService struct {
	users        *UserService
	gifts        *GiftService
	transactions *TransactionService
}

func NewReportService(users *UserService, gifts *GiftService, transactions *TransactionService) *ReportService {
	return &ReportService{users: users, gifts: gifts, transactions: transactions}
}

// Obligations lists, per user, the payments they still owe (with the total
// catalog value) and the deliveries they are still waiting to confirm.
// Users without outstanding obligations are omitted.
func (s *ReportService) Obligations(ctx context.Context) ([]model.Obligation, error) {
	var (
		users   []model.User
		catalog []model.Gift
		txs     []model.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { users, err = s.users.List(gctx); return })
	g.Go(func() (err error) { catalog, err = s.gifts.Catalog(gctx); return })
	g.Go(func() (err error) { txs, err = s.transactions.All(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(catalog))
	for _, gift := range catalog {
		prices[gift.ID] = gift.Price
	}

	byUser := make(map[string]*model.Obligation, len(users))
	for _, u := range users {
		byUser[u.ID] = &model.Obligation{UserID: u.ID, Name: u.Name, AmountDue: decimal.Zero}
	}

	for _, tx := range txs {
		switch {
		case tx.PaymentStatus == model.StatusPending:
			if o, ok := byUser[tx.FromUserID]; ok {
				o.PaymentsDue++
				o.AmountDue = o.AmountDue.Add(prices[tx.GiftID])
			}
		case tx.PaymentStatus == model.StatusCompleted && tx.DeliveryStatus == model.StatusPending:
			if o, ok := byUser[tx.ToUserID]; ok {
				o.DeliveriesAwaiting++
			}
		}
	}

	out := make([]model.Obligation, 0, len(byUser))
	for _, o := range byUser {
		if o.PaymentsDue > 0 || o.DeliveriesAwaiting > 0 {
			out = append(out, *o)
		}
	}
	slices.SortFunc(out, func(a, b model.Obligation) int {
		return cmp.Or(b.AmountDue.Cmp(a.AmountDue), cmp.Compare(a.Name, b.Name), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}

// Dashboard fetches the caller's home view in parallel.
func (s *ReportService) Dashboard(ctx context.Context, p auth.Principal) (model.Dashboard, error) {
	var d model.Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { d.User, err = s.users.Get(gctx, p.UserID); return })
	g.Go(func() (err error) { d.Recent, err = s.transactions.Recent(gctx, p, recentTransactions); return })
	g.Go(func() (err error) { d.PendingGifts, err = s.transactions.PendingGifts(gctx, p); return })
	g.Go(func() error {
		gifts, err := s.gifts.List(gctx, p)
		d.CatalogLength = len(gifts)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Dashboard{}, err
	}
	return d, nil
}
