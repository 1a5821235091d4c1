// Package workflow drives the quote-request lifecycle: customer decisions,
// admin decisions, and the materialization of approved requests into jobs.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"baydelivery/db"
	"baydelivery/internal/patch"
)

// Quote-request statuses. A request is created by the first customer decision
// and moves only through these values.
const (
	StatusNew                          = "new"
	StatusCustomerAcceptedPendingAdmin = "customer_accepted_pending_admin"
	StatusCustomerDeclined             = "customer_declined"
	StatusAdminApproved                = "admin_approved"
	StatusRejected                     = "rejected"
)

// JobStatusApprovedPendingSchedule is the initial status of a materialized job.
const JobStatusApprovedPendingSchedule = "approved_pending_schedule"

// Customer and admin decision actions.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionApprove = "approve"
	ActionReject  = "reject"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrQuoteNotFound   = errors.New("quote not found")
	ErrRequestNotFound = errors.New("quote request not found")
)

// Storage is the slice of the persistence layer the workflow needs.
type Storage interface {
	GetQuote(ctx context.Context, quoteID string) (*db.Quote, error)
	UpsertQuoteRequestDecision(ctx context.Context, qr *db.QuoteRequest, p db.RequestPatch) (*db.QuoteRequest, error)
	GetQuoteRequest(ctx context.Context, requestID string) (*db.QuoteRequest, error)
	UpdateQuoteRequestAdminDecision(ctx context.Context, requestID, status string, adminApprovedAt *time.Time, notes patch.String) (*db.QuoteRequest, error)
	CreateJobIfAbsent(ctx context.Context, j *db.Job) (*db.Job, error)
}

type Service struct {
	store Storage
	now   func() time.Time
}

func NewService(store Storage) *Service {
	return &Service{store: store, now: time.Now}
}

// DecisionFields are the optional scheduling fields a customer may send with a
// decision. Each is tri-state: omitted, explicit null, or a value.
type DecisionFields struct {
	Notes               patch.String
	RequestedJobDate    patch.String
	RequestedTimeWindow patch.String
}

// customerDetails are the fields denormalized out of the quote's stored
// request payload onto the workflow record.
type customerDetails struct {
	CustomerName   *string `json:"customer_name"`
	CustomerPhone  *string `json:"customer_phone"`
	JobAddress     *string `json:"job_address"`
	JobDescription *string `json:"job_description_customer"`
}

// RecordCustomerDecision applies an accept or decline against a quote. The
// write is a single upsert keyed on the quote id, so repeated or concurrent
// decisions for one quote always converge on a single request row holding the
// last decision.
func (s *Service) RecordCustomerDecision(ctx context.Context, quoteID, action string, fields DecisionFields) (*db.QuoteRequest, error) {
	if action != ActionAccept && action != ActionDecline {
		return nil, fmt.Errorf("customer action %q: %w", action, ErrUnknownAction)
	}

	quote, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("load quote %s: %w", quoteID, err)
	}

	var details customerDetails
	// Older quotes may predate the customer fields; a decode failure only
	// means the workflow record carries no denormalized contact info.
	_ = json.Unmarshal([]byte(quote.RequestJSON), &details)

	now := s.now().UTC()
	qr := &db.QuoteRequest{
		RequestID:      uuid.NewString(),
		QuoteID:        quote.QuoteID,
		CreatedAt:      now,
		CustomerName:   details.CustomerName,
		CustomerPhone:  details.CustomerPhone,
		JobAddress:     details.JobAddress,
		JobDescription: details.JobDescription,
		ServiceType:    quote.ServiceType,
		TotalCashCAD:   quote.TotalCashCAD,
		TotalEMTCAD:    quote.TotalEMTCAD,
		RequestJSON:    quote.RequestJSON,
	}

	switch action {
	case ActionAccept:
		qr.Status = StatusCustomerAcceptedPendingAdmin
		qr.CustomerAcceptedAt = &now
		qr.AdminApprovedAt = nil
	case ActionDecline:
		qr.Status = StatusCustomerDeclined
		qr.CustomerAcceptedAt = nil
		qr.AdminApprovedAt = nil
	}

	out, err := s.store.UpsertQuoteRequestDecision(ctx, qr, db.RequestPatch{
		Notes:               fields.Notes,
		RequestedJobDate:    fields.RequestedJobDate,
		RequestedTimeWindow: fields.RequestedTimeWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("record customer decision for quote %s: %w", quoteID, err)
	}
	return out, nil
}

// RecordAdminDecision approves or rejects a request. Approval stamps
// admin_approved_at and materializes the job; rejection clears the stamp.
// Approving twice returns the same job both times.
func (s *Service) RecordAdminDecision(ctx context.Context, requestID, action string, notes patch.String) (*db.QuoteRequest, *db.Job, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, nil, fmt.Errorf("admin action %q: %w", action, ErrUnknownAction)
	}

	now := s.now().UTC()
	status := StatusRejected
	var approvedAt *time.Time
	if action == ActionApprove {
		status = StatusAdminApproved
		approvedAt = &now
	}

	qr, err := s.store.UpdateQuoteRequestAdminDecision(ctx, requestID, status, approvedAt, notes)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, ErrRequestNotFound
		}
		return nil, nil, fmt.Errorf("record admin decision for request %s: %w", requestID, err)
	}

	if action != ActionApprove {
		return qr, nil, nil
	}

	job, err := s.store.CreateJobIfAbsent(ctx, &db.Job{
		JobID:          uuid.NewString(),
		RequestID:      qr.RequestID,
		QuoteID:        qr.QuoteID,
		CreatedAt:      now,
		Status:         JobStatusApprovedPendingSchedule,
		CustomerName:   qr.CustomerName,
		CustomerPhone:  qr.CustomerPhone,
		JobAddress:     qr.JobAddress,
		JobDescription: qr.JobDescription,
		ServiceType:    qr.ServiceType,
		TotalCashCAD:   qr.TotalCashCAD,
		TotalEMTCAD:    qr.TotalEMTCAD,
		PaidCAD:        0,
		OwingCAD:       qr.TotalCashCAD,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("materialize job for request %s: %w", requestID, err)
	}
	return qr, job, nil
}
