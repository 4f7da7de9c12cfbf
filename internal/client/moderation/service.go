package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
)

const (
	TableSubmissions = "temple_submissions"
	TableTemples     = "temples"
)

var (
	ErrNotAdmin         = errors.New("only the admin account can access this page")
	ErrSignInRequired   = errors.New("please sign in to submit a temple")
	ErrNotPending       = errors.New("submission has already been reviewed")
	ErrPartialApproval  = errors.New("temple published but submission status not updated")
	ErrProtectedTemple  = errors.New("only temples uploaded by users (and approved) can be deleted")
	ErrInvalidFilter    = errors.New("unknown submission filter")
	ErrMissingSubmitter = errors.New("submission has no submitter")
)

// Session exposes the current user and the moderation capability.
// *session.Context implements it.
type Session interface {
	Identity() *backend.Identity
	IsAdmin() bool
	AdminOverride() bool
}

type Filter string

const (
	FilterAll      Filter = "all"
	FilterPending  Filter = "pending"
	FilterApproved Filter = "approved"
	FilterRejected Filter = "rejected"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterPending, FilterApproved, FilterRejected:
		return f, nil
	case "":
		return FilterPending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

type Service struct {
	tables   backend.Tables
	realtime backend.Realtime
	sess     Session
	log      logging.Logger
	now      func() time.Time

	mu       sync.RWMutex
	approved []string
}

func NewService(tables backend.Tables, rt backend.Realtime, sess Session, log logging.Logger) *Service {
	return &Service{tables: tables, realtime: rt, sess: sess, log: log, now: time.Now}
}

func (s *Service) requireAdmin() error {
	if s.sess.IsAdmin() || s.sess.AdminOverride() {
		return nil
	}
	return ErrNotAdmin
}

type submissionRow struct {
	ID          string                  `json:"id"`
	Status      models.SubmissionStatus `json:"status"`
	TempleData  json.RawMessage         `json:"temple_data"`
	SubmittedBy *string                 `json:"submitted_by"`
	CreatedAt   time.Time               `json:"created_at"`
}

func (r submissionRow) submission() (models.Submission, error) {
	if r.ID == "" {
		return models.Submission{}, fmt.Errorf("%w: submission without id", models.ErrMalformedRow)
	}
	switch r.Status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
	default:
		return models.Submission{}, fmt.Errorf("%w: submission %s has status %q", models.ErrMalformedRow, r.ID, r.Status)
	}
	sub := models.Submission{ID: r.ID, Status: r.Status, CreatedAt: r.CreatedAt}
	if len(r.TempleData) > 0 && string(r.TempleData) != "null" {
		if err := json.Unmarshal(r.TempleData, &sub.TempleData); err != nil {
			return models.Submission{}, fmt.Errorf("%w: submission %s: %v", models.ErrMalformedRow, r.ID, err)
		}
	}
	if r.SubmittedBy != nil {
		sub.SubmittedBy = *r.SubmittedBy
	}
	return sub, nil
}

func (s *Service) selectSubmissions(ctx context.Context, q backend.Query) ([]models.Submission, error) {
	var rows []submissionRow
	if err := s.tables.Select(ctx, q, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Submission, 0, len(rows))
	for _, r := range rows {
		sub, err := r.submission()
		if err != nil {
			s.log.Warn(ctx, "skipping submission row", "error", err)
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

// List returns submissions newest first, optionally by status.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Submission, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	q := backend.Query{
		Table: TableSubmissions,
		Order: []backend.OrderBy{{Column: "created_at", Descending: true}},
	}
	if f != FilterAll {
		q.Filters = []backend.Filter{backend.Eq("status", string(f))}
	}
	subs, err := s.selectSubmissions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	return subs, nil
}

func (s *Service) get(ctx context.Context, id string) (models.Submission, error) {
	subs, err := s.selectSubmissions(ctx, backend.Query{
		Table:   TableSubmissions,
		Filters: []backend.Filter{backend.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return models.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	if len(subs) == 0 {
		return models.Submission{}, common.ErrNotFound
	}
	return subs[0], nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Submission, error) {
	if err := s.requireAdmin(); err != nil {
		return models.Submission{}, err
	}
	return s.get(ctx, id)
}

// Approve checks the submission and publishes it. The checks run in order
// and the first failure is returned as a *ValidationError. Publishing and
// the status change are two writes. They share a transaction when the tables
// implement backend.Atomic; otherwise a failed second write leaves the
// temple published and ErrPartialApproval is returned.
func (s *Service) Approve(ctx context.Context, id string) (string, error) {
	if err := s.requireAdmin(); err != nil {
		return "", err
	}
	sub, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	if sub.Status != models.StatusPending {
		return "", ErrNotPending
	}

	d := sub.TempleData
	name, err := validateName(d)
	if err != nil {
		return name, err
	}

	var existing []struct {
		Name json.RawMessage `json:"name"`
	}
	err = s.tables.Select(ctx, backend.Query{
		Table:   TableTemples,
		Columns: []string{"name"},
		Filters: []backend.Filter{backend.ILike("name->>english", backend.EscapeLike(name))},
	}, &existing)
	if err != nil {
		return name, fmt.Errorf("duplicate check: %w", err)
	}
	if len(existing) > 0 {
		return name, &ValidationError{Reason: ErrDuplicateName, Name: name}
	}

	if err := validateLocation(d, name); err != nil {
		return name, err
	}

	if err := s.publish(ctx, id, models.ToTempleRecord(d)); err != nil {
		return name, err
	}

	s.allow(name)
	s.log.Info(ctx, "submission approved", "submission", id, "temple", name)
	return name, nil
}

// publish inserts the temple and marks the submission approved. Backends
// without transactions can fail between the two writes, which is reported
// as ErrPartialApproval.
func (s *Service) publish(ctx context.Context, id string, rec models.TempleRecord) error {
	steps := func(ctx context.Context, tables backend.Tables) (inserted bool, err error) {
		if err := tables.Insert(ctx, TableTemples, []models.TempleRecord{rec}); err != nil {
			return false, fmt.Errorf("publish temple: %w", err)
		}
		return true, transition(ctx, tables, id, models.StatusApproved)
	}

	if atomic, ok := s.tables.(backend.Atomic); ok {
		return atomic.Atomically(ctx, func(ctx context.Context, tx backend.Tables) error {
			if _, err := steps(ctx, tx); err != nil {
				return fmt.Errorf("approve: %w", err)
			}
			return nil
		})
	}

	inserted, err := steps(ctx, s.tables)
	if err != nil && inserted {
		s.log.Error(ctx, "temple published but submission not marked approved", "submission", id, "error", err)
		return fmt.Errorf("%w: %w", ErrPartialApproval, err)
	}
	return err
}

// Reject moves a pending submission to rejected. The catalog is untouched.
func (s *Service) Reject(ctx context.Context, id string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	sub, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != models.StatusPending {
		return ErrNotPending
	}
	if err := transition(ctx, s.tables, id, models.StatusRejected); err != nil {
		return fmt.Errorf("reject submission: %w", err)
	}
	return nil
}

// transition moves a submission out of pending. The update only matches a
// row that is still pending, so a concurrent decision is reported as
// ErrNotPending instead of being overwritten.
func transition(ctx context.Context, tables backend.Tables, id string, to models.SubmissionStatus) error {
	err := tables.Update(ctx, TableSubmissions, map[string]string{"status": string(to)},
		backend.Eq("id", id), backend.Eq("status", string(models.StatusPending)))
	if err != nil {
		return err
	}
	var rows []struct {
		Status models.SubmissionStatus `json:"status"`
	}
	err = tables.Select(ctx, backend.Query{
		Table:   TableSubmissions,
		Columns: []string{"status"},
		Filters: []backend.Filter{backend.Eq("id", id)},
		Limit:   1,
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 || rows[0].Status != to {
		return ErrNotPending
	}
	return nil
}

// LoadApprovedNames rebuilds the allow-list of temples that came from
// approved submissions.
func (s *Service) LoadApprovedNames(ctx context.Context) error {
	subs, err := s.selectSubmissions(ctx, backend.Query{
		Table:   TableSubmissions,
		Columns: []string{"id", "temple_data", "status"},
		Filters: []backend.Filter{backend.Eq("status", string(models.StatusApproved))},
	})
	if err != nil {
		return fmt.Errorf("load approved names: %w", err)
	}
	var names []string
	for _, sub := range subs {
		n := strings.ToLower(strings.TrimSpace(sub.TempleData.Name.English))
		if n != "" && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	s.mu.Lock()
	s.approved = names
	s.mu.Unlock()
	return nil
}

func (s *Service) allow(name string) {
	n := strings.ToLower(strings.TrimSpace(name))
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.approved, n) {
		s.approved = append(s.approved, n)
	}
}

func (s *Service) ApprovedNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.approved)
}

// CanDelete reports whether a published temple came from an approved
// submission. Bundled and seeded temples never qualify.
func (s *Service) CanDelete(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	s.mu.RLock()
	defer s.mu.RUnlock()
	return n != "" && slices.Contains(s.approved, n)
}

type PublishedTemple struct {
	ID         string      `json:"id"`
	Name       models.Text `json:"name"`
	District   string      `json:"district"`
	State      string      `json:"state"`
	TempleType string      `json:"temple_type"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Published lists temples newest first, filtered by English name.
func (s *Service) Published(ctx context.Context, search string) ([]PublishedTemple, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	var rows []PublishedTemple
	err := s.tables.Select(ctx, backend.Query{
		Table:   TableTemples,
		Columns: []string{"id", "name", "district", "state", "temple_type", "created_at"},
		Order:   []backend.OrderBy{{Column: "created_at", Descending: true}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("load temples: %w", err)
	}
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return rows, nil
	}
	return slices.DeleteFunc(rows, func(t PublishedTemple) bool {
		return !strings.Contains(strings.ToLower(t.Name.English), q)
	}), nil
}

// DeletePublished removes a temple that came from an approved submission.
func (s *Service) DeletePublished(ctx context.Context, id, name string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if !s.CanDelete(name) {
		return ErrProtectedTemple
	}
	if err := s.tables.Delete(ctx, TableTemples, backend.Eq("id", id)); err != nil {
		return fmt.Errorf("delete temple: %w", err)
	}
	return nil
}

type newSubmission struct {
	Status      models.SubmissionStatus `json:"status"`
	TempleData  models.SubmissionData   `json:"temple_data"`
	SubmittedBy string                  `json:"submitted_by"`
}

// Submit files a new pending submission for the signed-in user.
func (s *Service) Submit(ctx context.Context, d models.SubmissionData) error {
	id := s.sess.Identity()
	if id == nil {
		return ErrSignInRequired
	}
	if strings.TrimSpace(d.Name.English) == "" {
		return &ValidationError{Reason: ErrNameRequired}
	}
	submitter := id.Email
	if submitter == "" {
		submitter = id.ID
	}
	if submitter == "" {
		return ErrMissingSubmitter
	}
	row := newSubmission{Status: models.StatusPending, TempleData: d, SubmittedBy: submitter}
	if err := s.tables.Insert(ctx, TableSubmissions, []newSubmission{row}); err != nil {
		return fmt.Errorf("submit temple: %w", err)
	}
	return nil
}
