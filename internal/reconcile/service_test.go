package reconcile_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/core/events"
	"github.com/thaohienhomes/phochat-payments/internal/order"
	orderPostgres "github.com/thaohienhomes/phochat-payments/internal/order/postgres"
	"github.com/thaohienhomes/phochat-payments/internal/reconcile"
)

type fakeLookup struct {
	statuses map[int64]string
	err      error
	calls    int
}

func (f *fakeLookup) GetPaymentStatus(_ context.Context, orderCode int64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.statuses[orderCode], nil
}

// flakyOrders fails SetStatusByOrderCode for one order code.
type flakyOrders struct {
	reconcile.Orders
	failCode int64
}

func (f flakyOrders) SetStatusByOrderCode(ctx context.Context, orderCode int64, status orderDatamodel.Status, source string) (*order.TransitionResult, error) {
	if orderCode == f.failCode {
		return nil, errors.New("deadlock detected")
	}
	return f.Orders.SetStatusByOrderCode(ctx, orderCode, status, source)
}

type listFailure struct {
	reconcile.Orders
}

func (listFailure) ListPendingOlderThan(context.Context, time.Time) ([]*orderDatamodel.Order, error) {
	return nil, errors.New("connection refused")
}

var _ = Describe("Reconcile Service Integration", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		orders   *order.Service
		slogger  *slog.Logger
		now      time.Time
		clock    func() time.Time
		createAt func(code int64, at time.Time)
	)

	BeforeEach(func() {
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
		Expect(err).ToNot(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).ToNot(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&orderDatamodel.Order{})).To(Succeed())

		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock = func() time.Time { return now }

		repo := orderPostgres.NewOrderRepository(db)
		orders = order.NewService(repo, events.NewEventBus(slogger), slogger, order.WithClock(clock))

		createAt = func(code int64, at time.Time) {
			admission := order.NewService(repo, nil, slogger, order.WithClock(func() time.Time { return at }))
			_, err := admission.CreateOrReusePending(ctx, order.AdmissionRequest{UserID: "u1", Amount: 10000, OrderCode: code})
			Expect(err).ToNot(HaveOccurred())
		}
	})

	statusOf := func(code int64) orderDatamodel.Status {
		view, err := orders.StatusByOrderCode(ctx, code)
		Expect(err).ToNot(HaveOccurred())
		return view.Status
	}

	It("should expire a stale pending order and do nothing on the second run", func() {
		// Given
		createAt(2002, now.Add(-16*time.Minute))
		sweep := reconcile.NewService(orders, slogger, reconcile.WithClock(clock))

		// When
		first, err := sweep.ReconcilePending(ctx, 15*time.Minute)
		Expect(err).ToNot(HaveOccurred())
		second, err := sweep.ReconcilePending(ctx, 15*time.Minute)
		Expect(err).ToNot(HaveOccurred())

		// Then
		Expect(first.Count).To(Equal(1))
		Expect(first.Results).To(Equal([]reconcile.Result{{OrderCode: 2002, Status: orderDatamodel.StatusExpired}}))
		Expect(first.Err()).ToNot(HaveOccurred())
		Expect(second.Count).To(BeZero())
		Expect(second.Results).To(BeEmpty())
		Expect(statusOf(2002)).To(Equal(orderDatamodel.StatusExpired))
	})

	It("should leave fresh and terminal orders alone", func() {
		createAt(1, now.Add(-5*time.Minute))
		createAt(2, now.Add(-time.Hour))
		_, err := orders.SetStatusByOrderCode(ctx, 2, orderDatamodel.StatusSucceeded, events.SourceWebhook)
		Expect(err).ToNot(HaveOccurred())

		report, err := reconcile.NewService(orders, slogger, reconcile.WithClock(clock)).ReconcilePending(ctx, 15*time.Minute)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Count).To(BeZero())
		Expect(statusOf(1)).To(Equal(orderDatamodel.StatusPending))
		Expect(statusOf(2)).To(Equal(orderDatamodel.StatusSucceeded))
	})

	It("should sweep every pending order when olderThan is zero", func() {
		createAt(1, now.Add(-5*time.Minute))
		createAt(2, now.Add(-time.Second))

		report, err := reconcile.NewService(orders, slogger, reconcile.WithClock(clock)).ReconcilePending(ctx, 0)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Count).To(Equal(2))
		Expect(statusOf(1)).To(Equal(orderDatamodel.StatusExpired))
		Expect(statusOf(2)).To(Equal(orderDatamodel.StatusExpired))
	})

	It("should reject a negative olderThan", func() {
		createAt(1, now.Add(-time.Hour))

		report, err := reconcile.NewService(orders, slogger, reconcile.WithClock(clock)).ReconcilePending(ctx, -time.Minute)

		Expect(err).To(MatchError(reconcile.ErrNegativeOlderThan))
		Expect(report).To(BeNil())
		Expect(statusOf(1)).To(Equal(orderDatamodel.StatusPending))
	})

	It("should isolate a failing order from the rest of the batch", func() {
		createAt(1, now.Add(-time.Hour))
		createAt(2, now.Add(-time.Hour))
		createAt(3, now.Add(-time.Hour))
		sweep := reconcile.NewService(flakyOrders{Orders: orders, failCode: 2}, slogger, reconcile.WithClock(clock))

		report, err := sweep.ReconcilePending(ctx, 15*time.Minute)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Count).To(Equal(3))
		Expect(report.Results).To(ContainElement(reconcile.Result{OrderCode: 1, Status: orderDatamodel.StatusExpired}))
		Expect(report.Results).To(ContainElement(reconcile.Result{OrderCode: 3, Status: orderDatamodel.StatusExpired}))
		Expect(report.Results).To(ContainElement(HaveField("Error", ContainSubstring("deadlock detected"))))
		Expect(report.Err()).To(MatchError(ContainSubstring("order 2")))
		Expect(statusOf(2)).To(Equal(orderDatamodel.StatusPending))
	})

	It("should fail the call when pending orders cannot be listed", func() {
		_, err := reconcile.NewService(listFailure{orders}, slogger).ReconcilePending(ctx, time.Minute)
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
	})

	Describe("with provider status lookup", func() {
		It("should follow definite provider answers and expire the rest", func() {
			createAt(1, now.Add(-time.Hour))
			createAt(2, now.Add(-time.Hour))
			createAt(3, now.Add(-time.Hour))
			lookup := &fakeLookup{statuses: map[int64]string{
				1: paymentgateway.PaymentStatusPaid,
				2: paymentgateway.PaymentStatusCancelled,
				3: paymentgateway.PaymentStatusPending,
			}}
			sweep := reconcile.NewService(orders, slogger, reconcile.WithClock(clock), reconcile.WithStatusLookup(lookup))

			_, err := sweep.ReconcilePending(ctx, 15*time.Minute)

			Expect(err).ToNot(HaveOccurred())
			Expect(lookup.calls).To(Equal(3))
			Expect(statusOf(1)).To(Equal(orderDatamodel.StatusSucceeded))
			Expect(statusOf(2)).To(Equal(orderDatamodel.StatusFailed))
			Expect(statusOf(3)).To(Equal(orderDatamodel.StatusExpired))
		})

		It("should expire when the provider cannot be reached", func() {
			createAt(1, now.Add(-time.Hour))
			lookup := &fakeLookup{err: errors.New("timeout")}

			report, err := reconcile.NewService(orders, slogger, reconcile.WithClock(clock), reconcile.WithStatusLookup(lookup)).
				ReconcilePending(ctx, 15*time.Minute)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Results).To(Equal([]reconcile.Result{{OrderCode: 1, Status: orderDatamodel.StatusExpired}}))
		})
	})

	Describe("Job", func() {
		It("should be named for the worker registry", func() {
			Expect(reconcile.NewJob(nil, time.Minute, slogger).Name()).To(Equal(reconcile.JobName))
		})

		It("should fail when an order could not be reconciled", func() {
			createAt(1, now.Add(-time.Hour))
			sweep := reconcile.NewService(flakyOrders{Orders: orders, failCode: 1}, slogger, reconcile.WithClock(clock))

			err := reconcile.NewJob(sweep, 15*time.Minute, slogger).Run(ctx)

			Expect(err).To(MatchError(ContainSubstring("deadlock detected")))
		})

		It("should succeed when every order was reconciled", func() {
			createAt(1, now.Add(-time.Hour))
			sweep := reconcile.NewService(orders, slogger, reconcile.WithClock(clock))

			Expect(reconcile.NewJob(sweep, 15*time.Minute, slogger).Run(ctx)).To(Succeed())
		})
	})
})
