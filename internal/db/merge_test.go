package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roadMerge(table string) MergeConfig {
	return MergeConfig{
		Table: table,
		Key:   "id",
		Columns: []StagedColumn{
			{Name: "id", Type: "BIGINT"},
			{Name: "geom", Type: "BYTEA", Expr: "ST_SetSRID(ST_GeomFromWKB(%s), 4326)"},
			{Name: "surface", Type: "TEXT"},
		},
	}
}

var roadColumns = []string{"id", "geom", "surface"}

func TestStageAndMerge_EmptyRows(t *testing.T) {
	n, err := StageAndMerge(context.Background(), nil, roadMerge("roads"), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStageAndMerge_InvalidConfig(t *testing.T) {
	rows := [][]any{{int64(1), []byte{0x01}, "asphalt"}}

	tests := []struct {
		name string
		cfg  func(*MergeConfig)
		rows [][]any
		want string
	}{
		{"no columns", func(c *MergeConfig) { c.Columns = nil }, rows, "no columns"},
		{"no key", func(c *MergeConfig) { c.Key = "" }, rows, "no key column"},
		{"key not a column", func(c *MergeConfig) { c.Key = "osm_id" }, rows, `key "osm_id" is not a column`},
		{"untyped column", func(c *MergeConfig) { c.Columns[2].Type = "" }, rows, `column "surface" has no type`},
		{"short row", func(*MergeConfig) {}, [][]any{{int64(1)}}, "row 0 has 1 values, want 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := roadMerge("roads")
			tt.cfg(&cfg)
			_, err := StageAndMerge(context.Background(), nil, cfg, tt.rows)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStageAndMerge_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_public_roads" \("id" BIGINT, "geom" BYTEA, "surface" TEXT\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_public_roads"}, roadColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "public"."roads" \("id", "geom", "surface"\) SELECT s."id", ST_SetSRID\(ST_GeomFromWKB\(s."geom"\), 4326\), s."surface" FROM "_stage_public_roads" s ON CONFLICT \("id"\) DO UPDATE SET "geom" = EXCLUDED."geom", "surface" = EXCLUDED."surface"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{int64(1), []byte{0x01}, "asphalt"},
		{int64(2), []byte{0x01}, ""},
	}
	n, err := StageAndMerge(context.Background(), mock, roadMerge("public.roads"), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageAndMerge_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_roads"}, roadColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = StageAndMerge(context.Background(), mock, roadMerge("roads"), [][]any{{int64(1), []byte{0x01}, "asphalt"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into staging table for roads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSQL_KeyOnly(t *testing.T) {
	cfg := MergeConfig{Table: "ids", Key: "id", Columns: []StagedColumn{{Name: "id", Type: "BIGINT"}}}
	got := mergeSQL(cfg, stagingTable(cfg.Table))
	assert.Equal(t, `INSERT INTO "ids" ("id") SELECT s."id" FROM "_stage_ids" s ON CONFLICT ("id") DO NOTHING`, got)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"roads", `"roads"`},
		{"public.roads", `"public"."roads"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}
