package postgresql_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository/postgresql"
)

func TestOutboxTaskRepo_CreateTx(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mock_database.NewMockTx(ctrl)
	repo := postgresql.NewOutboxTaskRepo()

	task := &repository.OutboxTask{Payload: json.RawMessage(`{"action":"crear_donacion"}`), Topic: "donation_audit"}

	mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(repository.TaskStatusCreated),
		gomock.Eq(task.Payload), gomock.Eq(task.Topic), gomock.Any(), gomock.Any()).
		Return(pgconn.CommandTag("INSERT 0 1"), nil)

	assert.NoError(t, repo.CreateTx(context.Background(), mockTx, task))
	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, repository.TaskStatusCreated, task.Status)
}

func TestOutboxTaskRepo_GetProcessableTasksTx(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mock_database.NewMockTx(ctrl)
	repo := postgresql.NewOutboxTaskRepo()
	staleBefore := time.Date(2025, 1, 1, 11, 59, 0, 0, time.UTC)

	stored := []*repository.OutboxTask{{ID: uuid.New(), Status: repository.TaskStatusFailed, Attempts: 2}}
	mockTx.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Eq(repository.TaskStatusCreated),
		gomock.Eq(repository.TaskStatusFailed), gomock.Eq(5),
		gomock.Eq(repository.TaskStatusProcessing), gomock.Eq(staleBefore),
		gomock.Eq(20)).
		DoAndReturn(func(_ context.Context, dest interface{}, _ string, _ ...interface{}) error {
			*dest.(*[]*repository.OutboxTask) = stored
			return nil
		})

	tasks, err := repo.GetProcessableTasksTx(context.Background(), mockTx, 20, 5, staleBefore)
	assert.NoError(t, err)
	assert.Equal(t, stored, tasks)
}

func TestOutboxTaskRepo_GetProcessableTasksTx_ReclaimsStaleProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mock_database.NewMockTx(ctrl)
	repo := postgresql.NewOutboxTaskRepo()
	staleBefore := time.Date(2025, 1, 1, 11, 59, 0, 0, time.UTC)

	stuck := &repository.OutboxTask{
		ID: uuid.New(), Status: repository.TaskStatusProcessing, Attempts: 1,
		UpdatedAt: staleBefore.Add(-time.Minute),
	}
	mockTx.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, dest interface{}, query string, args ...interface{}) error {
			assert.Regexp(t, `status = \$4 AND updated_at < \$5`, query)
			assert.Contains(t, query, "FOR UPDATE SKIP LOCKED")
			require.Len(t, args, 6)
			assert.Equal(t, repository.TaskStatusProcessing, args[3])
			assert.Equal(t, staleBefore, args[4])
			*dest.(*[]*repository.OutboxTask) = []*repository.OutboxTask{stuck}
			return nil
		})

	tasks, err := repo.GetProcessableTasksTx(context.Background(), mockTx, 20, 5, staleBefore)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, repository.TaskStatusProcessing, tasks[0].Status)
}

func TestOutboxTaskRepo_UpdateTaskStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	completed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("through transaction", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := postgresql.NewOutboxTaskRepo()

		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq(id), gomock.Eq(repository.TaskStatusDone),
			gomock.Eq(1), gomock.Nil(), gomock.Eq(&completed)).
			Return(pgconn.CommandTag("UPDATE 1"), nil)

		assert.NoError(t, repo.UpdateTaskStatusTx(ctx, mockTx, id, repository.TaskStatusDone, 1, nil, &completed))
	})

	t.Run("task vanished", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOutboxTaskRepo()

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.UpdateTaskStatus(ctx, mockDB, id, repository.TaskStatusFailed, 2, nil, nil)
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOutboxTaskRepo()

		expectedErr := errors.New("database error")
		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, expectedErr)

		err := repo.UpdateTaskStatus(ctx, mockDB, id, repository.TaskStatusFailed, 2, nil, nil)
		assert.ErrorIs(t, err, expectedErr)
	})
}
