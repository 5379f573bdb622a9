// Package store implements the repository on top of the ent SQL builders and driver.
//
// Every method runs on the transaction carried by the context when there is one,
// so services compose repository calls inside RunInTransaction freely.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/server/db"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	drv dialect.Driver
	now func() time.Time
}

func New(drv dialect.Driver) *Store {
	return &Store{drv: drv, now: time.Now}
}

type txKey struct{}

func txFromContext(ctx context.Context) dialect.Tx {
	tx, _ := ctx.Value(txKey{}).(dialect.Tx)
	return tx
}

func (s *Store) conn(ctx context.Context) dialect.ExecQuerier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}

	return s.drv
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// RunInTransaction runs fn in a transaction, nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(context.Context) error) (err error) {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()

			panic(r)
		}

		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	committed = true

	return nil
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res sql.Result
	if err := s.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// queryRows runs the query and scans every row into dest, a pointer to a slice.
func (s *Store) queryRows(ctx context.Context, query string, args []any, dest any) error {
	var rows entsql.Rows
	if err := s.conn(ctx).Query(ctx, query, args, &rows); err != nil {
		return err
	}

	defer rows.Close()

	return entsql.ScanSlice(&rows, dest)
}

// update applies columns to the rows matching where, updated_at is set when touch is true.
func (s *Store) update(ctx context.Context, table string, columns map[string]any, where *entsql.Predicate, touch bool) (int64, error) {
	u := s.builder().Update(table)

	keys := lo.Keys(columns)
	sort.Strings(keys)

	for _, key := range keys {
		switch v := columns[key].(type) {
		case nil:
			u.SetNull(key)
		case *time.Time:
			if v == nil {
				u.SetNull(key)
			} else {
				u.Set(key, formatTime(*v))
			}
		case time.Time:
			u.Set(key, formatTime(v))
		default:
			u.Set(key, v)
		}
	}

	if touch {
		u.Set("updated_at", formatTime(s.now()))
	}

	query, args := u.Where(where).Query()

	return s.exec(ctx, query, args)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}

	return formatTime(*t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(db.TimeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}

	return t.UTC()
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}

	return lo.ToPtr(parseTime(s))
}

func toArgs[T ~string](values []T) []any {
	return lo.Map(values, func(v T, _ int) any { return string(v) })
}
