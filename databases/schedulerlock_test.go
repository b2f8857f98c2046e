package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/databases/mocks"
)

func TestSchedulerLock_TryAcquire(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{name: "free lease", err: nil, want: true},
		{name: "held elsewhere", err: errors.Join(apperrors.ErrDuplicateKey, errors.New("E11000")), want: false},
		{name: "store failure", err: errors.New("mocked-error"), want: false, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbHelper := &mocks.DatabaseHelper{}
			collectionHelper := &mocks.CollectionHelper{}
			collectionHelper.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			dbHelper.On("Collection", "scheduler_locks").Return(collectionHelper)

			got, err := databases.NewSchedulerLockDatabase(dbHelper).TryAcquireLock(context.Background(), "daily-digest", "instance-a", time.Minute)

			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchedulerLock_Release(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	collectionHelper.On("DeleteOne", context.Background(), bson.M{"_id": "daily-digest", "owner": "instance-a"}).Return(int64(1), nil)
	dbHelper.On("Collection", "scheduler_locks").Return(collectionHelper)

	err := databases.NewSchedulerLockDatabase(dbHelper).ReleaseLock(context.Background(), "daily-digest", "instance-a")

	assert.NoError(t, err)
	collectionHelper.AssertExpectations(t)
}
