// Package rest implements backend.Tables over the hosted PostgREST API.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/netx"
)

// TokenSource yields the bearer token for the current user, or "" for
// anonymous access.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client struct {
	baseURL string
	anonKey string
	http    *netx.Client
	tokens  TokenSource
}

func NewClient(baseURL, anonKey string, hc *netx.Client, tokens TokenSource) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), anonKey: anonKey, http: hc, tokens: tokens}
}

func (c *Client) headers(ctx context.Context, prefer ...string) (http.Header, error) {
	bearer := c.anonKey
	if c.tokens != nil {
		tok, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		if tok != "" {
			bearer = tok
		}
	}
	h := http.Header{}
	h.Set("apikey", c.anonKey)
	h.Set("Authorization", "Bearer "+bearer)
	if len(prefer) > 0 {
		h.Set("Prefer", strings.Join(prefer, ","))
	}
	return h, nil
}

func (c *Client) tableURL(table string, params url.Values) string {
	u := c.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func filterParams(params url.Values, filters []backend.Filter) error {
	for _, f := range filters {
		switch f.Op {
		case backend.OpEq, backend.OpILike, backend.OpGte:
		default:
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
		v := f.Value
		if f.Op == backend.OpILike {
			v = restPattern(v)
		}
		params.Add(f.Column, string(f.Op)+"."+v)
	}
	return nil
}

// restPattern rewrites an ILIKE pattern for the REST gateway, which reads
// '*' as the multi-character wildcard. A literal '*' cannot be escaped there,
// so it degrades to the single-character wildcard.
func restPattern(p string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range p {
		switch {
		case r == '*':
			sb.WriteByte('_')
			escaped = false
		case escaped:
			sb.WriteRune(r)
			escaped = false
		case r == '\\':
			sb.WriteRune(r)
			escaped = true
		case r == '%':
			sb.WriteByte('*')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (c *Client) Select(ctx context.Context, q backend.Query, dest any) error {
	params := url.Values{}
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ",")
	}
	params.Set("select", cols)
	if err := filterParams(params, q.Filters); err != nil {
		return err
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	h, err := c.headers(ctx)
	if err != nil {
		return err
	}
	return c.http.DoJSON(ctx, http.MethodGet, c.tableURL(q.Table, params), h, nil, dest)
}

func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	h, err := c.headers(ctx, "return=minimal")
	if err != nil {
		return err
	}
	return c.http.DoJSON(ctx, http.MethodPost, c.tableURL(table, nil), h, rows, nil)
}

func (c *Client) Upsert(ctx context.Context, table string, rows any, onConflict string) error {
	h, err := c.headers(ctx, "resolution=merge-duplicates", "return=minimal")
	if err != nil {
		return err
	}
	params := url.Values{}
	if onConflict != "" {
		params.Set("on_conflict", onConflict)
	}
	return c.http.DoJSON(ctx, http.MethodPost, c.tableURL(table, params), h, rows, nil)
}

func (c *Client) Update(ctx context.Context, table string, patch any, filters ...backend.Filter) error {
	params := url.Values{}
	if err := filterParams(params, filters); err != nil {
		return err
	}
	h, err := c.headers(ctx, "return=minimal")
	if err != nil {
		return err
	}
	return c.http.DoJSON(ctx, http.MethodPatch, c.tableURL(table, params), h, patch, nil)
}

func (c *Client) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete from %s without filters refused", table)
	}
	params := url.Values{}
	if err := filterParams(params, filters); err != nil {
		return err
	}
	h, err := c.headers(ctx, "return=minimal")
	if err != nil {
		return err
	}
	return c.http.DoJSON(ctx, http.MethodDelete, c.tableURL(table, params), h, nil, nil)
}

