package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/repository"
	"github.com/qs3c/vpn_go_server/internal/testutil"
)

func newAdminService(db *gorm.DB, notifier Notifier) *AdminService {
	return NewAdminService(
		repository.NewUserRepository(db),
		repository.NewTariffRepository(db),
		repository.NewNodeRepository(db),
		repository.NewDeviceRepository(db),
		repository.NewPaymentRepository(db),
		notifier,
	)
}

func TestAdmin_NodeLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)

	created, err := svc.CreateNode(&dto.CreateNodeRequest{
		Name:        "msk-1",
		APIURL:      "http://10.0.0.1:51821",
		APIPassword: "secret",
		MaxCapacity: 50,
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Zero(t, created.Load)

	// 局部更新只动给了值的字段
	newCap := 80
	inactive := false
	updated, err := svc.UpdateNode(created.ID, &dto.UpdateNodeRequest{
		MaxCapacity: &newCap,
		IsActive:    &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "msk-1", updated.Name)
	assert.Equal(t, 80, updated.MaxCapacity)
	assert.False(t, updated.IsActive)

	nodes, err := svc.ListNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestAdmin_UpdateNode_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)

	name := "x"
	_, err := svc.UpdateNode(999, &dto.UpdateNodeRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestAdmin_TariffLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)

	info, err := svc.CreateTariff(&dto.CreateTariffRequest{
		Name:       "月付",
		Days:       30,
		Price:      199,
		MaxDevices: 3,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateTariff(info.ID))

	active, err := repository.NewTariffRepository(db).ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAdmin_GrantSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)
	userRepo := repository.NewUserRepository(db)

	user := testutil.TestUser(t, db)

	require.NoError(t, svc.GrantSubscription(&dto.GrantSubscriptionRequest{
		UserID: user.ID,
		Days:   30,
		Quota:  3,
	}))

	updated, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.SubscriptionUntil)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *updated.SubscriptionUntil, time.Minute)
	assert.Equal(t, 3, updated.DeviceQuota)

	// 有效订阅上追加发放，从旧到期时间续期
	require.NoError(t, svc.GrantSubscription(&dto.GrantSubscriptionRequest{
		UserID: user.ID,
		Days:   10,
		Quota:  5,
	}))

	updated, err = userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 40), *updated.SubscriptionUntil, time.Minute)
	assert.Equal(t, 5, updated.DeviceQuota)
}

func TestAdmin_GrantSubscription_UserNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)

	err := svc.GrantSubscription(&dto.GrantSubscriptionRequest{UserID: 999, Days: 30, Quota: 1})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdmin_PaymentStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)

	user := testutil.TestUser(t, db)
	testutil.TestPayment(t, db, user.ID,
		testutil.WithStatus(model.PaymentStatusSucceeded),
		testutil.WithAmount(100))
	testutil.TestPayment(t, db, user.ID,
		testutil.WithStatus(model.PaymentStatusSucceeded),
		testutil.WithAmount(250))
	// pending 和 canceled 不计入
	testutil.TestPayment(t, db, user.ID, testutil.WithAmount(999))
	testutil.TestPayment(t, db, user.ID,
		testutil.WithStatus(model.PaymentStatusCanceled),
		testutil.WithAmount(999))

	for _, period := range []string{"today", "month", "year", "all"} {
		stats, err := svc.PaymentStats(period)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Count, period)
		assert.InDelta(t, 350, stats.TotalValue, 0.001, period)
	}

	_, err := svc.PaymentStats("week")
	assert.Error(t, err)
}

func TestAdmin_ListUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)

	for i := 0; i < 4; i++ {
		testutil.TestUser(t, db)
	}

	infos, total, err := svc.ListUsers(1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, infos, 3)
}

func TestAdmin_Broadcast(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	notifier := &fakeNotifier{}
	svc := newAdminService(db, notifier)

	require.NoError(t, svc.Broadcast(context.Background(), "服务器今晚维护", "all"))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "broadcast", notifier.sent[0].Kind)
	assert.Equal(t, int64(0), notifier.sent[0].UserID)
	assert.Equal(t, "服务器今晚维护", notifier.sent[0].Message)
}

func TestAdmin_Broadcast_ActiveScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	notifier := &fakeNotifier{}
	svc := newAdminService(db, notifier)

	active := testutil.TestUser(t, db,
		testutil.WithSubscription(time.Now().Add(24*time.Hour), 2))
	testutil.TestUser(t, db,
		testutil.WithSubscription(time.Now().Add(-24*time.Hour), 2))
	testutil.TestUser(t, db)

	require.NoError(t, svc.Broadcast(context.Background(), "续费提醒", "active"))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, active.ID, notifier.sent[0].UserID)
	assert.Equal(t, "broadcast", notifier.sent[0].Kind)
}

func TestAdmin_Broadcast_InactiveScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	notifier := &fakeNotifier{}
	svc := newAdminService(db, notifier)

	testutil.TestUser(t, db,
		testutil.WithSubscription(time.Now().Add(24*time.Hour), 2))
	expired := testutil.TestUser(t, db,
		testutil.WithSubscription(time.Now().Add(-24*time.Hour), 2))
	fresh := testutil.TestUser(t, db)

	require.NoError(t, svc.Broadcast(context.Background(), "回来看看", "inactive"))

	require.Len(t, notifier.sent, 2)
	ids := []int64{notifier.sent[0].UserID, notifier.sent[1].UserID}
	assert.ElementsMatch(t, []int64{expired.ID, fresh.ID}, ids)
}

func TestAdmin_GrantAddon(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)
	userRepo := repository.NewUserRepository(db)
	user := testutil.TestUser(t, db)

	// 加一个槽位并顺延 30 天
	err := svc.GrantAddon(&dto.GrantAddonRequest{
		UserID:     user.ID,
		CountDelta: 1,
		ExtendDays: 30,
	})
	require.NoError(t, err)

	updated, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.AddonCount)
	require.NotNil(t, updated.AddonUntil)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *updated.AddonUntil, time.Minute)

	// 减到负数时收口到 0
	err = svc.GrantAddon(&dto.GrantAddonRequest{UserID: user.ID, CountDelta: -5})
	require.NoError(t, err)

	updated, err = userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AddonCount)

	// reset 清空计数和锚点
	err = svc.GrantAddon(&dto.GrantAddonRequest{UserID: user.ID, CountDelta: 3, Reset: true})
	require.NoError(t, err)

	updated, err = userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AddonCount)
	assert.Nil(t, updated.AddonUntil)
}

func TestAdmin_FindUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)
	user := testutil.TestUser(t, db, testutil.WithUsername("bob"))

	byName, err := svc.FindUser("bob")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byID, err := svc.FindUser(strconv.FormatInt(user.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, "bob", byID.Username)

	_, err = svc.FindUser("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdmin_SystemStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	svc := newAdminService(db, nil)

	active := testutil.TestUser(t, db,
		testutil.WithSubscription(time.Now().Add(24*time.Hour), 2))
	testutil.TestUser(t, db,
		testutil.WithSubscription(time.Now().Add(-24*time.Hour), 2))
	testutil.TestUser(t, db)
	testutil.TestDevice(t, db, active.ID)
	testutil.TestDevice(t, db, active.ID)

	stats, err := svc.SystemStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.ActiveSubscriptions)
	assert.Equal(t, int64(2), stats.TotalDevices)
}
