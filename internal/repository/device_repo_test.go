package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vpn_go_server/internal/testutil"
)

func TestDeviceRepository_ListByUser_Order(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeviceRepository(db)

	user := testutil.TestUser(t, db)
	base := time.Now().Add(-time.Hour)

	// 倒序插入，验证按创建时间排序
	d3 := testutil.TestDevice(t, db, user.ID, testutil.WithCreatedAt(base.Add(3*time.Minute)))
	d1 := testutil.TestDevice(t, db, user.ID, testutil.WithCreatedAt(base.Add(1*time.Minute)))
	d2 := testutil.TestDevice(t, db, user.ID, testutil.WithCreatedAt(base.Add(2*time.Minute)))

	devices, err := repo.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, d1.ID, devices[0].ID)
	assert.Equal(t, d2.ID, devices[1].ID)
	assert.Equal(t, d3.ID, devices[2].ID)
}

func TestDeviceRepository_ListByUserClass(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeviceRepository(db)

	user := testutil.TestUser(t, db)
	testutil.TestDevice(t, db, user.ID)
	testutil.TestDevice(t, db, user.ID)
	extra := testutil.TestDevice(t, db, user.ID, testutil.WithExtra())

	baseDevices, err := repo.ListByUserClass(user.ID, false)
	require.NoError(t, err)
	assert.Len(t, baseDevices, 2)

	extraDevices, err := repo.ListByUserClass(user.ID, true)
	require.NoError(t, err)
	require.Len(t, extraDevices, 1)
	assert.Equal(t, extra.ID, extraDevices[0].ID)
}

func TestDeviceRepository_CountByUserClass(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeviceRepository(db)

	user := testutil.TestUser(t, db)
	testutil.TestDevice(t, db, user.ID)
	testutil.TestDevice(t, db, user.ID, testutil.WithExtra())

	count, err := repo.CountByUserClass(user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeviceRepository_DeleteByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeviceRepository(db)

	user := testutil.TestUser(t, db)
	d1 := testutil.TestDevice(t, db, user.ID)
	d2 := testutil.TestDevice(t, db, user.ID)
	d3 := testutil.TestDevice(t, db, user.ID)

	err := repo.DeleteByIDs([]int64{d1.ID, d2.ID})
	require.NoError(t, err)

	devices, err := repo.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, d3.ID, devices[0].ID)

	// 空列表不报错
	assert.NoError(t, repo.DeleteByIDs(nil))
}
