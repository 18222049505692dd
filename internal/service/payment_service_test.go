package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/repository"
	"github.com/qs3c/vpn_go_server/internal/testutil"
	"github.com/qs3c/vpn_go_server/internal/worker"
)

func newPaymentService(t *testing.T, db *gorm.DB, gateway GatewayClient, notifier Notifier) *PaymentService {
	t.Helper()

	cfg := newTestConfig()
	paymentRepo := repository.NewPaymentRepository(db)
	settlement := NewSettlementService(db, paymentRepo, gateway, notifier, cfg)
	return NewPaymentService(
		paymentRepo,
		repository.NewTariffRepository(db),
		repository.NewUserRepository(db),
		settlement,
		gateway,
		nil,
		cfg,
	)
}

func TestPayment_ListTariffs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newPaymentService(t, db, newFakeGateway(), nil)

	testutil.TestTariff(t, db, testutil.WithTariffPrice(299))
	testutil.TestTariff(t, db, testutil.WithTariffPrice(99))
	inactive := testutil.TestTariff(t, db, testutil.WithTariffPrice(9))
	require.NoError(t, repository.NewTariffRepository(db).Deactivate(inactive.ID))

	infos, err := svc.ListTariffs()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	// 价格升序
	assert.Equal(t, 99.0, infos[0].Price)
	assert.Equal(t, 299.0, infos[1].Price)
}

func TestPayment_BuyTariff_Gateway(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	gateway := newFakeGateway()
	svc := newPaymentService(t, db, gateway, nil)

	user := testutil.TestUser(t, db)
	tariff := testutil.TestTariff(t, db, testutil.WithTariffPrice(199.99))

	resp, err := svc.BuyTariff(context.Background(), user.ID, &dto.BuyTariffRequest{TariffID: tariff.ID})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, resp.Status)
	assert.NotEmpty(t, resp.ConfirmationURL)

	payment, err := repository.NewPaymentRepository(db).GetByID(resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, 199.99, payment.Amount)
	assert.Equal(t, model.PurposeSubscription, payment.Purpose)
	require.NotNil(t, payment.YKPaymentID)
	require.NotNil(t, payment.TariffID)
	assert.Equal(t, tariff.ID, *payment.TariffID)
}

func TestPayment_BuyTariff_InactiveTariff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newPaymentService(t, db, newFakeGateway(), nil)

	user := testutil.TestUser(t, db)
	tariff := testutil.TestTariff(t, db)
	require.NoError(t, repository.NewTariffRepository(db).Deactivate(tariff.ID))

	_, err := svc.BuyTariff(context.Background(), user.ID, &dto.BuyTariffRequest{TariffID: tariff.ID})
	assert.ErrorIs(t, err, ErrTariffNotFound)
}

func TestPayment_BuyTariff_Balance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	gateway := newFakeGateway()
	svc := newPaymentService(t, db, gateway, nil)

	userRepo := repository.NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithBalance(500))
	tariff := testutil.TestTariff(t, db,
		testutil.WithTariffPrice(199),
		testutil.WithTariffDevices(4))

	resp, err := svc.BuyTariff(context.Background(), user.ID,
		&dto.BuyTariffRequest{TariffID: tariff.ID, UseBalance: true})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSucceeded, resp.Status)
	assert.Empty(t, resp.ConfirmationURL)
	// 余额路径不触网关
	assert.Zero(t, gateway.created)

	updated, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 301, updated.Balance, 0.001)
	assert.Equal(t, 4, updated.DeviceQuota)
	require.NotNil(t, updated.SubscriptionUntil)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, tariff.Days), *updated.SubscriptionUntil, time.Minute)
}

func TestPayment_BuyTariff_BalanceInsufficient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newPaymentService(t, db, newFakeGateway(), nil)

	user := testutil.TestUser(t, db, testutil.WithBalance(10))
	tariff := testutil.TestTariff(t, db, testutil.WithTariffPrice(199))

	_, err := svc.BuyTariff(context.Background(), user.ID,
		&dto.BuyTariffRequest{TariffID: tariff.ID, UseBalance: true})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// 余额原样，不留悬空流水
	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10, updated.Balance, 0.001)

	pending, err := repository.NewPaymentRepository(db).ListPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPayment_BuyTariff_AlreadyActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	gateway := newFakeGateway()
	svc := newPaymentService(t, db, gateway, nil)
	tariff := testutil.TestTariff(t, db)

	user := testutil.TestUser(t, db,
		testutil.WithBalance(500),
		testutil.WithSubscription(time.Now().AddDate(0, 0, 20), 2))

	_, err := svc.BuyTariff(context.Background(), user.ID, &dto.BuyTariffRequest{TariffID: tariff.ID})
	assert.ErrorIs(t, err, ErrSubscriptionActive)

	// 余额路径同样拒绝续费
	_, err = svc.BuyTariff(context.Background(), user.ID,
		&dto.BuyTariffRequest{TariffID: tariff.ID, UseBalance: true})
	assert.ErrorIs(t, err, ErrSubscriptionActive)

	// 拒绝发生在任何流水产生之前
	_, total, err := repository.NewPaymentRepository(db).ListByUser(user.ID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPayment_BuyAddon_Balance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newPaymentService(t, db, newFakeGateway(), nil)

	user := testutil.TestUser(t, db,
		testutil.WithBalance(100),
		testutil.WithSubscription(time.Now().AddDate(0, 0, 10), 2))

	resp, err := svc.BuyAddon(context.Background(), user.ID, &dto.BuyAddonRequest{UseBalance: true})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSucceeded, resp.Status)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, updated.Balance, 0.001)
	assert.Equal(t, 1, updated.AddonCount)
	require.NotNil(t, updated.AddonUntil)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *updated.AddonUntil, time.Minute)
}

func TestPayment_BuyAddon_NoSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newPaymentService(t, db, newFakeGateway(), nil)

	user := testutil.TestUser(t, db, testutil.WithBalance(100))

	_, err := svc.BuyAddon(context.Background(), user.ID, &dto.BuyAddonRequest{UseBalance: true})
	assert.ErrorIs(t, err, ErrSubscriptionRequired)
}

func TestPayment_BalancePath_CancelsWatcher(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	cfg := newTestConfig()
	gateway := newFakeGateway()
	paymentRepo := repository.NewPaymentRepository(db)
	settlement := NewSettlementService(db, paymentRepo, gateway, nil, cfg)

	registry := worker.NewRegistry()
	watcher := worker.NewWatcher(registry, settlement, time.Hour, time.Hour)
	svc := NewPaymentService(
		paymentRepo,
		repository.NewTariffRepository(db),
		repository.NewUserRepository(db),
		settlement,
		gateway,
		watcher,
		cfg,
	)

	user := testutil.TestUser(t, db,
		testutil.WithBalance(100),
		testutil.WithSubscription(time.Now().AddDate(0, 0, 10), 2))

	// 挂一个未完成的观察，余额即时结算应当把它终止
	watcher.Watch(user.ID, 999)
	require.Equal(t, 1, registry.Len())

	resp, err := svc.BuyAddon(context.Background(), user.ID, &dto.BuyAddonRequest{UseBalance: true})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSucceeded, resp.Status)
	assert.Eventually(t, func() bool { return registry.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestPayment_TopUp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	gateway := newFakeGateway()
	svc := newPaymentService(t, db, gateway, nil)

	user := testutil.TestUser(t, db)

	resp, err := svc.TopUp(context.Background(), user.ID, 300)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, resp.Status)
	assert.Equal(t, 1, gateway.created)

	payment, err := repository.NewPaymentRepository(db).GetByID(resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PurposeTopup, payment.Purpose)
}

func TestPayment_ListPayments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newPaymentService(t, db, newFakeGateway(), nil)

	user := testutil.TestUser(t, db)
	for i := 0; i < 5; i++ {
		testutil.TestPayment(t, db, user.ID, testutil.WithAmount(float64(100+i)))
	}

	infos, total, err := svc.ListPayments(user.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, infos, 3)

	infos, _, err = svc.ListPayments(user.ID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestPayment_NotifyTimeout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	notifier := &fakeNotifier{}
	svc := newPaymentService(t, db, newFakeGateway(), notifier)

	callback := svc.NotifyTimeout(notifier)
	callback(7, 42)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "payment_timeout", notifier.sent[0].Kind)
	assert.Equal(t, int64(7), notifier.sent[0].UserID)
	assert.Equal(t, int64(42), notifier.sent[0].PaymentID)
}
