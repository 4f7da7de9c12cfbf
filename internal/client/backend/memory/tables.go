package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/google/uuid"
)

var ErrNoFilters = errors.New("refusing unfiltered write")

type row = map[string]any

// Tables stores rows per table in insertion order.
type Tables struct {
	mu   sync.Mutex
	data map[string][]row
	hub  *Hub
	now  func() time.Time
}

func NewTables(hub *Hub) *Tables {
	return &Tables{data: map[string][]row{}, hub: hub, now: time.Now}
}

// Seed inserts rows without emitting change events.
func (t *Tables) Seed(table string, rows any) error {
	objs, err := decodeRows(rows)
	if err != nil {
		return err
	}
	t.mu.Lock()
	for _, o := range objs {
		t.fill(o)
		t.data[table] = append(t.data[table], o)
	}
	t.mu.Unlock()
	return nil
}

func (t *Tables) fill(o row) {
	if _, ok := o["id"]; !ok {
		o["id"] = uuid.NewString()
	}
	if _, ok := o["created_at"]; !ok {
		o["created_at"] = t.now().UTC().Format(time.RFC3339Nano)
	}
}

func decodeRows(rows any) ([]row, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, "{") {
		var o row
		if err := json.Unmarshal(b, &o); err != nil {
			return nil, err
		}
		return []row{o}, nil
	}
	var out []row
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("rows must be objects: %w", err)
	}
	return out, nil
}

func clone(o row) row {
	c := make(row, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

func (t *Tables) Select(ctx context.Context, q backend.Query, dest any) error {
	t.mu.Lock()
	var out []row
	for _, r := range t.data[q.Table] {
		if matchAll(r, q.Filters) {
			out = append(out, clone(r))
		}
	}
	t.mu.Unlock()

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(lookup(out[i], o.Column), lookup(out[j], o.Column))
				if c == 0 {
					continue
				}
				if o.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if len(q.Columns) > 0 {
		for i, r := range out {
			p := row{}
			for _, c := range q.Columns {
				if v, ok := r[c]; ok {
					p[c] = v
				}
			}
			out[i] = p
		}
	}
	if out == nil {
		out = []row{}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (t *Tables) Insert(ctx context.Context, table string, rows any) error {
	objs, err := decodeRows(rows)
	if err != nil {
		return err
	}
	var changes []backend.RowChange
	t.mu.Lock()
	for _, o := range objs {
		t.fill(o)
		t.data[table] = append(t.data[table], o)
		changes = append(changes, change(backend.ChangeInsert, table, o, nil))
	}
	t.mu.Unlock()
	t.publish(changes)
	return nil
}

func (t *Tables) Upsert(ctx context.Context, table string, rows any, onConflict string) error {
	objs, err := decodeRows(rows)
	if err != nil {
		return err
	}
	var changes []backend.RowChange
	t.mu.Lock()
	for _, o := range objs {
		idx := -1
		if key, ok := o[onConflict]; ok {
			for i, r := range t.data[table] {
				if compare(r[onConflict], key) == 0 {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			t.fill(o)
			t.data[table] = append(t.data[table], o)
			changes = append(changes, change(backend.ChangeInsert, table, o, nil))
			continue
		}
		old := clone(t.data[table][idx])
		for k, v := range o {
			t.data[table][idx][k] = v
		}
		changes = append(changes, change(backend.ChangeUpdate, table, t.data[table][idx], old))
	}
	t.mu.Unlock()
	t.publish(changes)
	return nil
}

func (t *Tables) Update(ctx context.Context, table string, patch any, filters ...backend.Filter) error {
	if len(filters) == 0 {
		return ErrNoFilters
	}
	objs, err := decodeRows(patch)
	if err != nil {
		return err
	}
	if len(objs) != 1 {
		return fmt.Errorf("update %s: patch must be a single object", table)
	}
	var changes []backend.RowChange
	t.mu.Lock()
	for _, r := range t.data[table] {
		if !matchAll(r, filters) {
			continue
		}
		old := clone(r)
		for k, v := range objs[0] {
			r[k] = v
		}
		changes = append(changes, change(backend.ChangeUpdate, table, r, old))
	}
	t.mu.Unlock()
	t.publish(changes)
	return nil
}

func (t *Tables) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	if len(filters) == 0 {
		return ErrNoFilters
	}
	var changes []backend.RowChange
	t.mu.Lock()
	kept := t.data[table][:0]
	for _, r := range t.data[table] {
		if matchAll(r, filters) {
			changes = append(changes, change(backend.ChangeDelete, table, nil, r))
			continue
		}
		kept = append(kept, r)
	}
	t.data[table] = kept
	t.mu.Unlock()
	t.publish(changes)
	return nil
}

// Rows returns a copy of a table's rows, for inspection in tests.
func (t *Tables) Rows(table string) []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]map[string]any, len(t.data[table]))
	for i, r := range t.data[table] {
		out[i] = clone(r)
	}
	return out
}

func (t *Tables) publish(changes []backend.RowChange) {
	if t.hub == nil {
		return
	}
	for _, c := range changes {
		t.hub.publishChange(c)
	}
}

func change(typ backend.ChangeType, table string, newRow, oldRow row) backend.RowChange {
	c := backend.RowChange{Type: typ, Table: table}
	if newRow != nil {
		c.New, _ = json.Marshal(newRow)
	}
	if oldRow != nil {
		c.Old, _ = json.Marshal(oldRow)
	}
	return c
}

// lookup resolves "col" or "col->>field".
func lookup(r row, column string) any {
	col, field, nested := strings.Cut(column, "->>")
	v := r[col]
	if !nested {
		return v
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[field]
}

func text(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		b, _ := json.Marshal(x)
		return string(b), true
	}
}

// compare orders numbers numerically and everything else as text; nil
// sorts last.
func compare(a, b any) int {
	as, aok := text(a)
	bs, bok := text(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(as, bs)
}

func likeRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	escaped := false
	for _, r := range pattern {
		if escaped {
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		sb.WriteString(`\\`)
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}

func match(r row, f backend.Filter) bool {
	v := lookup(r, f.Column)
	s, ok := text(v)
	if !ok {
		return false
	}
	switch f.Op {
	case backend.OpEq:
		return compare(v, f.Value) == 0
	case backend.OpILike:
		return likeRegexp(f.Value).MatchString(s)
	case backend.OpGte:
		return compare(v, f.Value) >= 0
	}
	return false
}

func matchAll(r row, filters []backend.Filter) bool {
	for _, f := range filters {
		if !match(r, f) {
			return false
		}
	}
	return true
}
