package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "sample_points", []string{"idx", "density_km"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"sample_points"}, []string{"idx", "density_km"}).WillReturnResult(3)

	rows := [][]any{{0, 12.5}, {1, 0.0}, {2, 3.25}}
	n, err := CopyFrom(context.Background(), mock, "sample_points", []string{"idx", "density_km"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"sample_points"}, []string{"idx", "density_km"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{0, 1.5}}
	_, err = CopyFrom(context.Background(), mock, "sample_points", []string{"idx", "density_km"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO sample_points")
	assert.NoError(t, mock.ExpectationsWereMet())
}
