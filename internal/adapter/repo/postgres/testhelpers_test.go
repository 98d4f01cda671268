package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// assign copies vals into Scan destinations; nil leaves the zero value.
func assign(dest []any, vals ...any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: want %d dest, got %d", len(vals), len(dest))
	}
	for i, v := range vals {
		dv := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		dv.Set(reflect.ValueOf(v))
	}
	return nil
}

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

func rowOf(vals ...any) rowStub {
	return rowStub{scan: func(dest ...any) error { return assign(dest, vals...) }}
}

func rowErr(err error) rowStub {
	return rowStub{scan: func(...any) error { return err }}
}

// rowsStub implements pgx.Rows over a fixed set of value tuples.
type rowsStub struct {
	data [][]any
	i    int
	err  error
}

func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return r.err }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Values() ([]any, error)                       { return r.data[r.i-1], nil }
func (r *rowsStub) RawValues() [][]byte                          { return nil }
func (r *rowsStub) Conn() *pgx.Conn                              { return nil }
func (r *rowsStub) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}
func (r *rowsStub) Scan(dest ...any) error { return assign(dest, r.data[r.i-1]...) }

type execResult struct {
	affected int64
	err      error
}

// poolStub implements postgres.PgxPool. Each call pops the next queued
// response and records the SQL it was given.
type poolStub struct {
	execs []execResult
	rows  []pgx.Row
	lists []*rowsStub
	sql   []string
	args  [][]any
}

func (p *poolStub) record(sql string, args []any) {
	p.sql = append(p.sql, strings.Join(strings.Fields(sql), " "))
	p.args = append(p.args, args)
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.record(sql, args)
	if len(p.execs) == 0 {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	r := p.execs[0]
	p.execs = p.execs[1:]
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", r.affected)), nil
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.record(sql, args)
	if len(p.rows) == 0 {
		return rowErr(errors.New("no row configured"))
	}
	r := p.rows[0]
	p.rows = p.rows[1:]
	return r
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.record(sql, args)
	if len(p.lists) == 0 {
		return nil, errors.New("no rows configured")
	}
	r := p.lists[0]
	p.lists = p.lists[1:]
	return r, nil
}

func (p *poolStub) lastSQL() string {
	if len(p.sql) == 0 {
		return ""
	}
	return p.sql[len(p.sql)-1]
}
