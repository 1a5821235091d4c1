package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"baydelivery/internal/patch"
)

// ErrNotFound is returned when a row does not exist. Callers should map it to
// their own not-found condition instead of leaking sql.ErrNoRows.
var ErrNotFound = errors.New("not found")

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Quote is an immutable computed price. request_json is the caller's submitted
// payload verbatim; response_json is the full engine output including the
// internal breakdown.
type Quote struct {
	QuoteID      string    `db:"quote_id" json:"quote_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	ServiceType  string    `db:"service_type" json:"service_type"`
	TotalCashCAD float64   `db:"total_cash_cad" json:"total_cash_cad"`
	TotalEMTCAD  float64   `db:"total_emt_cad" json:"total_emt_cad"`
	RequestJSON  string    `db:"request_json" json:"-"`
	ResponseJSON string    `db:"response_json" json:"-"`
}

func (s *Storage) CreateQuote(ctx context.Context, q *Quote) error {
	query := `
        INSERT INTO quotes
            (quote_id, created_at, service_type, total_cash_cad, total_emt_cad, request_json, response_json)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		q.QuoteID, q.CreatedAt, q.ServiceType, q.TotalCashCAD, q.TotalEMTCAD, q.RequestJSON, q.ResponseJSON)
	return err
}

func (s *Storage) GetQuote(ctx context.Context, quoteID string) (*Quote, error) {
	q := &Quote{}
	query := `SELECT * FROM quotes WHERE quote_id=$1`
	err := s.db.GetContext(ctx, q, query, quoteID)
	return q, notFound(err)
}

// QuoteFilter narrows SearchQuotes. Zero values mean "no filter".
type QuoteFilter struct {
	ServiceType string
	MinTotal    *float64
	MaxTotal    *float64
	After       *time.Time
	Before      *time.Time
	Limit       int
}

func (s *Storage) ListQuotes(ctx context.Context, limit int) ([]Quote, error) {
	quotes := []Quote{}
	query := `SELECT * FROM quotes ORDER BY created_at DESC LIMIT $1`
	err := s.db.SelectContext(ctx, &quotes, query, limit)
	return quotes, err
}

func (s *Storage) SearchQuotes(ctx context.Context, f QuoteFilter) ([]Quote, error) {
	var where []string
	var args []interface{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.ServiceType != "" {
		add("service_type = $%d", f.ServiceType)
	}
	if f.MinTotal != nil {
		add("total_cash_cad >= $%d", *f.MinTotal)
	}
	if f.MaxTotal != nil {
		add("total_cash_cad <= $%d", *f.MaxTotal)
	}
	if f.After != nil {
		add("created_at >= $%d", *f.After)
	}
	if f.Before != nil {
		add("created_at <= $%d", *f.Before)
	}

	query := "SELECT * FROM quotes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	quotes := []Quote{}
	err := s.db.SelectContext(ctx, &quotes, query, args...)
	return quotes, err
}

// QuoteRequest is the mutable workflow record, at most one per quote
// (UNIQUE(quote_id) in the schema). Customer-facing fields are denormalized
// from the quote so the workflow can be listed without re-reading it.
type QuoteRequest struct {
	RequestID           string     `db:"request_id" json:"request_id"`
	QuoteID             string     `db:"quote_id" json:"quote_id"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	Status              string     `db:"status" json:"status"`
	CustomerName        *string    `db:"customer_name" json:"customer_name"`
	CustomerPhone       *string    `db:"customer_phone" json:"customer_phone"`
	JobAddress          *string    `db:"job_address" json:"job_address"`
	JobDescription      *string    `db:"job_description" json:"job_description"`
	ServiceType         string     `db:"service_type" json:"service_type"`
	TotalCashCAD        float64    `db:"total_cash_cad" json:"total_cash_cad"`
	TotalEMTCAD         float64    `db:"total_emt_cad" json:"total_emt_cad"`
	Notes               *string    `db:"notes" json:"notes"`
	RequestedJobDate    *string    `db:"requested_job_date" json:"requested_job_date"`
	RequestedTimeWindow *string    `db:"requested_time_window" json:"requested_time_window"`
	CustomerAcceptedAt  *time.Time `db:"customer_accepted_at" json:"customer_accepted_at"`
	AdminApprovedAt     *time.Time `db:"admin_approved_at" json:"admin_approved_at"`
	RequestJSON         string     `db:"request_json" json:"-"`
}

// RequestPatch carries the tri-state optional scheduling fields of a customer
// decision: a field that is not Present leaves the stored value untouched, a
// Present field with a nil value clears it.
type RequestPatch struct {
	Notes               patch.String
	RequestedJobDate    patch.String
	RequestedTimeWindow patch.String
}

// UpsertQuoteRequestDecision applies a customer decision in a single
// conditional write. The first decision for a quote inserts the row; any later
// decision updates it in place through the ON CONFLICT arm, so two concurrent
// decisions can never produce two rows for one quote.
func (s *Storage) UpsertQuoteRequestDecision(ctx context.Context, qr *QuoteRequest, p RequestPatch) (*QuoteRequest, error) {
	query := `
        INSERT INTO quote_requests
            (request_id, quote_id, created_at, status,
             customer_name, customer_phone, job_address, job_description,
             service_type, total_cash_cad, total_emt_cad,
             notes, requested_job_date, requested_time_window,
             customer_accepted_at, admin_approved_at, request_json)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        ON CONFLICT (quote_id) DO UPDATE SET
            status = EXCLUDED.status,
            customer_accepted_at = EXCLUDED.customer_accepted_at,
            admin_approved_at = EXCLUDED.admin_approved_at,
            notes = CASE WHEN $18 THEN EXCLUDED.notes ELSE quote_requests.notes END,
            requested_job_date = CASE WHEN $19 THEN EXCLUDED.requested_job_date ELSE quote_requests.requested_job_date END,
            requested_time_window = CASE WHEN $20 THEN EXCLUDED.requested_time_window ELSE quote_requests.requested_time_window END
        RETURNING *`

	out := &QuoteRequest{}
	err := s.db.QueryRowxContext(ctx, query,
		qr.RequestID, qr.QuoteID, qr.CreatedAt, qr.Status,
		qr.CustomerName, qr.CustomerPhone, qr.JobAddress, qr.JobDescription,
		qr.ServiceType, qr.TotalCashCAD, qr.TotalEMTCAD,
		p.Notes.Value, p.RequestedJobDate.Value, p.RequestedTimeWindow.Value,
		qr.CustomerAcceptedAt, qr.AdminApprovedAt, qr.RequestJSON,
		p.Notes.Present, p.RequestedJobDate.Present, p.RequestedTimeWindow.Present,
	).StructScan(out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateQuoteRequestAdminDecision stamps or clears admin_approved_at together
// with the status change. Notes follow the same tri-state rule as customer
// decisions.
func (s *Storage) UpdateQuoteRequestAdminDecision(ctx context.Context, requestID, status string, adminApprovedAt *time.Time, notes patch.String) (*QuoteRequest, error) {
	query := `
        UPDATE quote_requests
        SET status = $2,
            admin_approved_at = $3,
            notes = CASE WHEN $4 THEN $5 ELSE notes END
        WHERE request_id = $1
        RETURNING *`

	out := &QuoteRequest{}
	err := s.db.QueryRowxContext(ctx, query,
		requestID, status, adminApprovedAt, notes.Present, notes.Value,
	).StructScan(out)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (s *Storage) GetQuoteRequest(ctx context.Context, requestID string) (*QuoteRequest, error) {
	qr := &QuoteRequest{}
	query := `SELECT * FROM quote_requests WHERE request_id=$1`
	err := s.db.GetContext(ctx, qr, query, requestID)
	return qr, notFound(err)
}

func (s *Storage) GetQuoteRequestByQuoteID(ctx context.Context, quoteID string) (*QuoteRequest, error) {
	qr := &QuoteRequest{}
	query := `SELECT * FROM quote_requests WHERE quote_id=$1`
	err := s.db.GetContext(ctx, qr, query, quoteID)
	return qr, notFound(err)
}

func (s *Storage) ListQuoteRequests(ctx context.Context, status string, limit int) ([]QuoteRequest, error) {
	requests := []QuoteRequest{}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if status != "" {
		query := `SELECT * FROM quote_requests WHERE status=$1 ORDER BY created_at DESC LIMIT $2`
		err := s.db.SelectContext(ctx, &requests, query, status, limit)
		return requests, err
	}
	query := `SELECT * FROM quote_requests ORDER BY created_at DESC LIMIT $1`
	err := s.db.SelectContext(ctx, &requests, query, limit)
	return requests, err
}

// Job is a frozen snapshot of an approved request. UNIQUE(quote_id) backs the
// at-most-one-job-per-quote invariant.
type Job struct {
	JobID          string    `db:"job_id" json:"job_id"`
	RequestID      string    `db:"request_id" json:"request_id"`
	QuoteID        string    `db:"quote_id" json:"quote_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Status         string    `db:"status" json:"status"`
	CustomerName   *string   `db:"customer_name" json:"customer_name"`
	CustomerPhone  *string   `db:"customer_phone" json:"customer_phone"`
	JobAddress     *string   `db:"job_address" json:"job_address"`
	JobDescription *string   `db:"job_description" json:"job_description"`
	ServiceType    string    `db:"service_type" json:"service_type"`
	TotalCashCAD   float64   `db:"total_cash_cad" json:"total_cash_cad"`
	TotalEMTCAD    float64   `db:"total_emt_cad" json:"total_emt_cad"`
	PaidCAD        float64   `db:"paid_cad" json:"paid_cad"`
	OwingCAD       float64   `db:"owing_cad" json:"owing_cad"`
	Notes          *string   `db:"notes" json:"notes"`
}

// CreateJobIfAbsent materializes a job idempotently. The insert is a no-op
// when a job already exists for the quote; the read-back returns whichever row
// won, with no re-snapshot of its fields.
func (s *Storage) CreateJobIfAbsent(ctx context.Context, j *Job) (*Job, error) {
	query := `
        INSERT INTO jobs
            (job_id, request_id, quote_id, created_at, status,
             customer_name, customer_phone, job_address, job_description,
             service_type, total_cash_cad, total_emt_cad, paid_cad, owing_cad, notes)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (quote_id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		j.JobID, j.RequestID, j.QuoteID, j.CreatedAt, j.Status,
		j.CustomerName, j.CustomerPhone, j.JobAddress, j.JobDescription,
		j.ServiceType, j.TotalCashCAD, j.TotalEMTCAD, j.PaidCAD, j.OwingCAD, j.Notes)
	if err != nil {
		return nil, err
	}
	return s.GetJobByQuoteID(ctx, j.QuoteID)
}

func (s *Storage) GetJob(ctx context.Context, jobID string) (*Job, error) {
	j := &Job{}
	query := `SELECT * FROM jobs WHERE job_id=$1`
	err := s.db.GetContext(ctx, j, query, jobID)
	return j, notFound(err)
}

func (s *Storage) GetJobByQuoteID(ctx context.Context, quoteID string) (*Job, error) {
	j := &Job{}
	query := `SELECT * FROM jobs WHERE quote_id=$1`
	err := s.db.GetContext(ctx, j, query, quoteID)
	return j, notFound(err)
}

func (s *Storage) ListJobs(ctx context.Context, status string, limit int) ([]Job, error) {
	jobs := []Job{}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if status != "" {
		query := `SELECT * FROM jobs WHERE status=$1 ORDER BY created_at DESC LIMIT $2`
		err := s.db.SelectContext(ctx, &jobs, query, status, limit)
		return jobs, err
	}
	query := `SELECT * FROM jobs ORDER BY created_at DESC LIMIT $1`
	err := s.db.SelectContext(ctx, &jobs, query, limit)
	return jobs, err
}

// JobPatch is a partial job update. Nil pointers mean "leave unchanged".
// PaidCAD recomputes owing from the job's frozen total.
type JobPatch struct {
	Status         *string
	CustomerName   *string
	CustomerPhone  *string
	JobAddress     *string
	JobDescription *string
	PaidCAD        *float64
	Notes          *string
}

func (s *Storage) UpdateJobFields(ctx context.Context, jobID string, p JobPatch) (*Job, error) {
	var set []string
	var args []interface{}

	add := func(expr string, v interface{}) {
		args = append(args, v)
		set = append(set, fmt.Sprintf(expr, len(args)))
	}

	if p.Status != nil {
		add("status = $%d", *p.Status)
	}
	if p.CustomerName != nil {
		add("customer_name = $%d", *p.CustomerName)
	}
	if p.CustomerPhone != nil {
		add("customer_phone = $%d", *p.CustomerPhone)
	}
	if p.JobAddress != nil {
		add("job_address = $%d", *p.JobAddress)
	}
	if p.JobDescription != nil {
		add("job_description = $%d", *p.JobDescription)
	}
	if p.Notes != nil {
		add("notes = $%d", *p.Notes)
	}
	if p.PaidCAD != nil {
		paid := *p.PaidCAD
		if paid < 0 {
			paid = 0
		}
		add("paid_cad = $%d", paid)
		add("owing_cad = GREATEST(total_cash_cad - $%d, 0)", paid)
	}

	if len(set) == 0 {
		return s.GetJob(ctx, jobID)
	}

	args = append(args, jobID)
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE job_id = $%d RETURNING *",
		strings.Join(set, ", "), len(args))

	out := &Job{}
	err := s.db.QueryRowxContext(ctx, query, args...).StructScan(out)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

// Attachment is a photo reference tied to a quote/request/job id. Opaque to the
// workflow; carried so backups round-trip it.
type Attachment struct {
	AttachmentID string    `db:"attachment_id" json:"attachment_id"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	Kind         string    `db:"kind" json:"kind"`
	FileName     string    `db:"file_name" json:"file_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	StorageURL   *string   `db:"storage_url" json:"storage_url"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (s *Storage) CreateAttachment(ctx context.Context, a *Attachment) error {
	query := `
        INSERT INTO attachments
            (attachment_id, owner_id, kind, file_name, mime_type, size_bytes, storage_url, created_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		a.AttachmentID, a.OwnerID, a.Kind, a.FileName, a.MimeType, a.SizeBytes, a.StorageURL, a.CreatedAt)
	return err
}

func (s *Storage) ListAttachments(ctx context.Context, ownerID string) ([]Attachment, error) {
	attachments := []Attachment{}
	query := `SELECT * FROM attachments WHERE owner_id=$1 ORDER BY created_at DESC`
	err := s.db.SelectContext(ctx, &attachments, query, ownerID)
	return attachments, err
}
