package sink_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/sink"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var insertRowQuery = regexp.QuoteMeta("INSERT INTO inspection_rows (id,batch_id,profile,path,fields) VALUES ($1,$2,$3,$4,$5)")

func newMockDb(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	rawDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = rawDb.Close() })

	return sqlx.NewDb(rawDb, "sqlmock"), mock
}

func Test_RowStore_Insert(t *testing.T) {
	t.Parallel()
	db, mock := newMockDb(t)
	batchID := uuid.New()

	mock.ExpectExec(insertRowQuery).
		WithArgs(sqlmock.AnyArg(), batchID, "framerate", "/media/a.mxf", `{"filename":"a.mxf","video_frame_rate":"25/1"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := sink.NewRowStore().Insert(db, batchID, media.FrameRateProfile, fakeRow{"/media/a.mxf", []string{"a.mxf", "25/1"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_RowStore_ListForBatch(t *testing.T) {
	t.Parallel()
	db, mock := newMockDb(t)
	batchID := uuid.New()
	rowID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "batch_id", "profile", "path", "fields", "created_at"}).
		AddRow(rowID.String(), batchID.String(), "framerate", "/media/a.mxf", []byte(`{"filename":"a.mxf"}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, batch_id, profile, path, fields, created_at FROM inspection_rows WHERE batch_id = $1 ORDER BY created_at")).
		WithArgs(batchID).
		WillReturnRows(rows)

	results, err := sink.NewRowStore().ListForBatch(db, batchID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rowID, results[0].ID)
	assert.Equal(t, "/media/a.mxf", results[0].Path)
	assert.Equal(t, map[string]string{"filename": "a.mxf"}, *results[0].Fields.Get())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Sink_MirrorFailureIsSinkIOError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDb(t)
	config := newConfig(t)
	batchID := uuid.New()

	mock.ExpectExec(insertRowQuery).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertRowQuery).WillReturnError(errors.New("connection reset"))

	s := sink.New(config, batchID, media.FrameRateProfile, sink.NewMirror(db, sink.NewRowStore()))
	require.NoError(t, s.OnSuccess(fakeRow{"/media/a.mxf", []string{"a.mxf", "25/1"}}))

	err := s.OnSuccess(fakeRow{"/media/b.mxf", []string{"b.mxf", "25/1"}})
	var ioErr *sink.SinkIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "mirror", ioErr.Op)
	assert.Equal(t, "/media/b.mxf", ioErr.Path)

	summary, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
