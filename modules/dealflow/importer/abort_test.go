package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/dealflow/modules/dealflow/infrastructure/sqlite"
)

func mockImporter(t *testing.T, opts Options) (*Importer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlite.New(db)
	if opts.Layout == nil {
		l := testLayout()
		opts.Layout = &l
	}
	return New(store, sqlite.NewOrganizationRepository(store), sqlite.NewFundRepository(store), opts), mock
}

func expectOrganizationCreated(mock sqlmock.Sqlmock, id int64, name string) {
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "fund_count", "created_at", "updated_at"}).
			AddRow(id, name, 0, now, now))
	mock.ExpectCommit()
}

func expectFundInserted(mock sqlmock.Sqlmock, id int64) {
	mock.ExpectQuery(`INSERT INTO funds`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func TestImporter_CommitFailureAborts(t *testing.T) {
	im, mock := mockImporter(t, Options{FundBatchSize: 1})
	diskErr := errors.New("disk I/O error")

	mock.ExpectQuery(`SELECT id, name FROM organizations`).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	expectOrganizationCreated(mock, 1, "Acme")
	mock.ExpectBegin()
	expectFundInserted(mock, 10)
	mock.ExpectCommit()
	mock.ExpectBegin()
	expectFundInserted(mock, 11)
	mock.ExpectCommit().WillReturnError(diskErr)

	var last State
	im.opts.Observer = func(_, to State) { last = to }
	_, err := im.Run(context.Background(), newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Acme", "Fund II", "2021"},
		[]string{"Acme", "Fund III", "2023"},
	))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, diskErr)
	assert.Equal(t, WritingFunds, rerr.State)
	assert.Equal(t, 1, rerr.RowIndex)
	assert.Equal(t, 3, rerr.Line)
	assert.Equal(t, Aborted, last)

	require.NotNil(t, rerr.Manifest)
	assert.Equal(t, Aborted, rerr.Manifest.State)
	assert.Equal(t, []int64{1}, rerr.Manifest.OrganizationsCreated)
	assert.Equal(t, []int64{10}, rerr.Manifest.FundsInserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporter_FinalCommitFailureReportsLastRow(t *testing.T) {
	im, mock := mockImporter(t, Options{})
	diskErr := errors.New("disk I/O error")

	mock.ExpectQuery(`SELECT id, name FROM organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Acme"))
	mock.ExpectBegin()
	expectFundInserted(mock, 20)
	expectFundInserted(mock, 21)
	mock.ExpectCommit().WillReturnError(diskErr)

	_, err := im.Run(context.Background(), newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Acme", "Fund II", "2021"},
	))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, diskErr)
	assert.Equal(t, WritingFunds, rerr.State)
	assert.Equal(t, 1, rerr.RowIndex)
	assert.Equal(t, 3, rerr.Line)
	assert.Empty(t, rerr.Manifest.FundsInserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporter_FinalOrganizationCommitFailureReportsLastRow(t *testing.T) {
	im, mock := mockImporter(t, Options{})
	diskErr := errors.New("disk I/O error")

	mock.ExpectQuery(`SELECT id, name FROM organizations`).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "fund_count", "created_at", "updated_at"}).
			AddRow(1, "Acme", 0, now, now))
	mock.ExpectCommit().WillReturnError(diskErr)

	_, err := im.Run(context.Background(), newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Acme", "Fund II", "2021"},
	))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, diskErr)
	assert.Equal(t, ResolvingOrganizations, rerr.State)
	assert.Equal(t, 1, rerr.RowIndex)
	assert.Equal(t, 3, rerr.Line)
	assert.Empty(t, rerr.Manifest.OrganizationsCreated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporter_InsertFailureRollsBackOpenBatch(t *testing.T) {
	im, mock := mockImporter(t, Options{FundBatchSize: 2})
	insertErr := errors.New("constraint failed")

	mock.ExpectQuery(`SELECT id, name FROM organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Acme"))
	mock.ExpectBegin()
	expectFundInserted(mock, 20)
	expectFundInserted(mock, 21)
	mock.ExpectCommit()
	mock.ExpectBegin()
	expectFundInserted(mock, 22)
	mock.ExpectQuery(`INSERT INTO funds`).WillReturnError(insertErr)
	mock.ExpectRollback()

	_, err := im.Run(context.Background(), newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Acme", "Fund II", "2020"},
		[]string{"Acme", "Fund III", "2021"},
		[]string{"Acme", "Fund IV", "2022"},
	))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, insertErr)
	assert.Equal(t, 3, rerr.RowIndex)
	assert.Empty(t, rerr.Manifest.OrganizationsCreated)
	assert.Equal(t, []int64{7}, rerr.Manifest.OrganizationsTouched)
	assert.Equal(t, []int64{20, 21}, rerr.Manifest.FundsInserted)
	assert.Equal(t, 2, rerr.Manifest.Summary.FundsInserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporter_ResolveFailureDropsUncommittedOrganizations(t *testing.T) {
	im, mock := mockImporter(t, Options{OrganizationBatchSize: 2})
	dbErr := errors.New("database is locked")

	mock.ExpectQuery(`SELECT id, name FROM organizations`).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "fund_count", "created_at", "updated_at"}).
			AddRow(1, "Acme", 0, now, now))
	mock.ExpectQuery(`INSERT INTO organizations`).WillReturnError(dbErr)
	mock.ExpectRollback()

	_, err := im.Run(context.Background(), newTable(
		[]string{"Acme", "Fund I", "2019"},
		[]string{"Globex", "Fund A", "2020"},
	))

	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ResolvingOrganizations, rerr.State)
	assert.Equal(t, 1, rerr.RowIndex)
	assert.Empty(t, rerr.Manifest.OrganizationsCreated)
	assert.Empty(t, rerr.Manifest.OrganizationsTouched)
	require.NoError(t, mock.ExpectationsWereMet())
}
