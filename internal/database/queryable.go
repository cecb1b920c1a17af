package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type (
	// Queryable is satisfied by both *sqlx.DB and *sqlx.Tx, allowing
	// stores to be used inside or outside of a transaction.
	Queryable interface {
		Exec(query string, args ...any) (sql.Result, error)
		Select(dest any, query string, args ...any) error
		Get(dest any, query string, args ...any) error
		Rebind(query string) string
	}

	// JsonColumn wraps a value stored as JSON(B) in the database.
	JsonColumn[T any] struct {
		val T
	}
)

func NewJsonColumn[T any](val T) JsonColumn[T] {
	return JsonColumn[T]{val: val}
}

func (j *JsonColumn[T]) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T in to JsonColumn", src)
	}

	return json.Unmarshal(data, &j.val)
}

func (j JsonColumn[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(j.val)
	if err != nil {
		return nil, err
	}

	return string(data), nil
}

func (j *JsonColumn[T]) Get() *T { return &j.val }
