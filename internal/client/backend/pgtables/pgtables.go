// Package pgtables implements backend.Tables directly on Postgres. Rows
// travel as JSON in both directions so the same DTOs serve the hosted REST
// API and a self-hosted database.
package pgtables

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/pgtables/migrations"
	"github.com/dmitrijs2005/templesanathan/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var (
	ErrBadIdentifier = errors.New("invalid identifier")
	ErrNoFilters     = errors.New("refusing unfiltered write")
)

var (
	identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	pathRe  = regexp.MustCompile(`^([a-z_][a-z0-9_]*)->>([a-z_][a-z0-9_]*)$`)
)

type Tables struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *Tables {
	return &Tables{db: db}
}

// Atomically runs fn in a transaction. Tables already bound to a
// transaction run fn directly.
func (t *Tables) Atomically(ctx context.Context, fn func(ctx context.Context, tx backend.Tables) error) error {
	db, ok := t.db.(*sql.DB)
	if !ok {
		return fn(ctx, t)
	}
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, New(tx))
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// Open connects with the pgx driver and applies the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

func ident(s string) (string, error) {
	if !identRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrBadIdentifier, s)
	}
	return s, nil
}

// column renders a plain column or a JSON text path such as name->>'english'.
func column(s string) (string, error) {
	if m := pathRe.FindStringSubmatch(s); m != nil {
		return m[1] + "->>'" + m[2] + "'", nil
	}
	return ident(s)
}

func where(filters []backend.Filter, args []any) (string, []any, error) {
	if len(filters) == 0 {
		return "", args, nil
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		col, err := column(f.Column)
		if err != nil {
			return "", nil, err
		}
		args = append(args, f.Value)
		p := "$" + strconv.Itoa(len(args))
		switch f.Op {
		case backend.OpEq:
			parts[i] = col + "::text = " + p
		case backend.OpILike:
			// Backslash is the default LIKE escape in Postgres.
			parts[i] = col + " ILIKE " + p
		case backend.OpGte:
			parts[i] = col + " >= " + p
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// BuildSelect renders q as a single-row query returning a JSON array.
func BuildSelect(q backend.Query) (string, []any, error) {
	table, err := ident(q.Table)
	if err != nil {
		return "", nil, err
	}
	cols := "*"
	if len(q.Columns) > 0 {
		names := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			if names[i], err = ident(c); err != nil {
				return "", nil, err
			}
		}
		cols = strings.Join(names, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + table)
	w, args, err := where(q.Filters, nil)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(w)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			col, err := column(o.Column)
			if err != nil {
				return "", nil, err
			}
			if o.Descending {
				col += " DESC"
			}
			parts[i] = col
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}

	return "SELECT coalesce(json_agg(t), '[]'::json) FROM (" + sb.String() + ") t", args, nil
}

func (t *Tables) Select(ctx context.Context, q backend.Query, dest any) error {
	query, args, err := BuildSelect(q)
	if err != nil {
		return err
	}
	var raw []byte
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return fmt.Errorf("select %s: %w", q.Table, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Table, err)
	}
	return nil
}

// rowsJSON encodes rows as a JSON array and returns the sorted union of
// their keys.
func rowsJSON(rows any) ([]byte, []string, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, nil, err
	}
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "{") {
		b = []byte("[" + trimmed + "]")
	}
	var objs []map[string]json.RawMessage
	if err := json.Unmarshal(b, &objs); err != nil {
		return nil, nil, fmt.Errorf("rows must be objects: %w", err)
	}
	seen := map[string]struct{}{}
	for _, o := range objs {
		for k := range o {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		if _, err := ident(k); err != nil {
			return nil, nil, err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return b, keys, nil
}

// BuildInsert renders an insert of JSON rows; onConflict turns it into an upsert.
func BuildInsert(table string, rows any, onConflict string) (string, []any, error) {
	if _, err := ident(table); err != nil {
		return "", nil, err
	}
	b, keys, err := rowsJSON(rows)
	if err != nil {
		return "", nil, err
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}
	cols := strings.Join(keys, ", ")
	q := "INSERT INTO " + table + " (" + cols + ") SELECT " + cols +
		" FROM json_populate_recordset(NULL::" + table + ", $1::json)"

	if onConflict != "" {
		target, err := ident(onConflict)
		if err != nil {
			return "", nil, err
		}
		var sets []string
		for _, k := range keys {
			if k != target {
				sets = append(sets, k+" = EXCLUDED."+k)
			}
		}
		if len(sets) == 0 {
			q += " ON CONFLICT (" + target + ") DO NOTHING"
		} else {
			q += " ON CONFLICT (" + target + ") DO UPDATE SET " + strings.Join(sets, ", ")
		}
	}
	return q, []any{string(b)}, nil
}

func (t *Tables) Insert(ctx context.Context, table string, rows any) error {
	q, args, err := BuildInsert(table, rows, "")
	if err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (t *Tables) Upsert(ctx context.Context, table string, rows any, onConflict string) error {
	q, args, err := BuildInsert(table, rows, onConflict)
	if err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func BuildUpdate(table string, patch any, filters []backend.Filter) (string, []any, error) {
	if _, err := ident(table); err != nil {
		return "", nil, err
	}
	if len(filters) == 0 {
		return "", nil, ErrNoFilters
	}
	b, keys, err := rowsJSON(patch)
	if err != nil {
		return "", nil, err
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("update %s: empty patch", table)
	}
	obj := strings.TrimSuffix(strings.TrimPrefix(string(b), "["), "]")

	cols := strings.Join(keys, ", ")
	src := "(SELECT " + cols + " FROM json_populate_record(NULL::" + table + ", $1::json))"
	set := cols + " = " + src
	if len(keys) > 1 {
		set = "(" + cols + ") = " + src
	}
	w, args, err := where(filters, []any{obj})
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + table + " SET " + set + w, args, nil
}

func (t *Tables) Update(ctx context.Context, table string, patch any, filters ...backend.Filter) error {
	q, args, err := BuildUpdate(table, patch, filters)
	if err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

func (t *Tables) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	if _, err := ident(table); err != nil {
		return err
	}
	if len(filters) == 0 {
		return ErrNoFilters
	}
	w, args, err := where(filters, nil)
	if err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, "DELETE FROM "+table+w, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// Pinger adapts *sql.DB to backend.Pinger.
type Pinger struct{ DB *sql.DB }

func (p Pinger) Ping(ctx context.Context) error { return p.DB.PingContext(ctx) }
