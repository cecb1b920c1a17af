package sink

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/database"
	"github.com/hbomb79/mediatab/internal/media"
)

const inspectionRowsTable = "inspection_rows"

type (
	// StoredRow is a row as persisted in the database. The fields of
	// the row are stored as a JSON object keyed by the profile header.
	StoredRow struct {
		ID        uuid.UUID                              `db:"id"`
		BatchID   uuid.UUID                              `db:"batch_id"`
		Profile   string                                 `db:"profile"`
		Path      string                                 `db:"path"`
		Fields    database.JsonColumn[map[string]string] `db:"fields"`
		CreatedAt time.Time                              `db:"created_at"`
	}

	// RowStore persists rows to PostgreSQL, mirroring the CSV output.
	RowStore struct{}
)

func NewRowStore() *RowStore { return &RowStore{} }

// Insert stores the row provided against the batch.
func (store *RowStore) Insert(db database.Queryable, batchID uuid.UUID, profile media.Profile, row media.Row) error {
	fields := rowFields(row)
	query, args, err := squirrel.
		Insert(inspectionRowsTable).
		Columns("id", "batch_id", "profile", "path", "fields").
		Values(uuid.New(), batchID, profile.String(), row.Source(), database.NewJsonColumn(fields)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to construct insert row query: %w", err)
	}

	if _, err := db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert row for %s: %w", row.Source(), err)
	}

	return nil
}

// ListForBatch returns every row stored for the batch, oldest first.
func (store *RowStore) ListForBatch(db database.Queryable, batchID uuid.UUID) ([]*StoredRow, error) {
	query, args, err := squirrel.
		Select("id", "batch_id", "profile", "path", "fields", "created_at").
		From(inspectionRowsTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		OrderBy("created_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list rows query: %w", err)
	}

	var results []*StoredRow
	if err := db.Select(&results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rows for batch %s: %w", batchID, err)
	}

	return results, nil
}

func rowFields(row media.Row) map[string]string {
	header := row.Header()
	record := row.Record()
	fields := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(record) {
			fields[name] = record[i]
		}
	}

	return fields
}
