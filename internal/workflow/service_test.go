package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baydelivery/db"
	"baydelivery/internal/patch"
)

// mockStore mirrors the conditional-write semantics of the real storage layer:
// customer decisions upsert on quote id, job creation is insert-if-absent.
type mockStore struct {
	quotes   map[string]*db.Quote
	requests map[string]*db.QuoteRequest // keyed by quote_id
	jobs     map[string]*db.Job          // keyed by quote_id
}

func newMockStore() *mockStore {
	return &mockStore{
		quotes:   map[string]*db.Quote{},
		requests: map[string]*db.QuoteRequest{},
		jobs:     map[string]*db.Job{},
	}
}

func (m *mockStore) GetQuote(_ context.Context, quoteID string) (*db.Quote, error) {
	q, ok := m.quotes[quoteID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return q, nil
}

func (m *mockStore) UpsertQuoteRequestDecision(_ context.Context, qr *db.QuoteRequest, p db.RequestPatch) (*db.QuoteRequest, error) {
	existing, ok := m.requests[qr.QuoteID]
	if !ok {
		stored := *qr
		stored.Notes = p.Notes.Value
		stored.RequestedJobDate = p.RequestedJobDate.Value
		stored.RequestedTimeWindow = p.RequestedTimeWindow.Value
		m.requests[qr.QuoteID] = &stored
		out := stored
		return &out, nil
	}
	existing.Status = qr.Status
	existing.CustomerAcceptedAt = qr.CustomerAcceptedAt
	existing.AdminApprovedAt = qr.AdminApprovedAt
	if p.Notes.Present {
		existing.Notes = p.Notes.Value
	}
	if p.RequestedJobDate.Present {
		existing.RequestedJobDate = p.RequestedJobDate.Value
	}
	if p.RequestedTimeWindow.Present {
		existing.RequestedTimeWindow = p.RequestedTimeWindow.Value
	}
	out := *existing
	return &out, nil
}

func (m *mockStore) GetQuoteRequest(_ context.Context, requestID string) (*db.QuoteRequest, error) {
	for _, qr := range m.requests {
		if qr.RequestID == requestID {
			out := *qr
			return &out, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) UpdateQuoteRequestAdminDecision(_ context.Context, requestID, status string, adminApprovedAt *time.Time, notes patch.String) (*db.QuoteRequest, error) {
	for _, qr := range m.requests {
		if qr.RequestID == requestID {
			qr.Status = status
			qr.AdminApprovedAt = adminApprovedAt
			if notes.Present {
				qr.Notes = notes.Value
			}
			out := *qr
			return &out, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) CreateJobIfAbsent(_ context.Context, j *db.Job) (*db.Job, error) {
	if existing, ok := m.jobs[j.QuoteID]; ok {
		out := *existing
		return &out, nil
	}
	stored := *j
	m.jobs[j.QuoteID] = &stored
	out := stored
	return &out, nil
}

func newTestService(store *mockStore, at time.Time) *Service {
	s := NewService(store)
	s.now = func() time.Time { return at }
	return s
}

func seedQuote(store *mockStore) *db.Quote {
	q := &db.Quote{
		QuoteID:      "q-1",
		CreatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ServiceType:  "haul_away",
		TotalCashCAD: 130,
		TotalEMTCAD:  146.90,
		RequestJSON: `{"service_type":"haul_away","customer_name":"Dana","customer_phone":"416-555-0199",` +
			`"job_address":"12 King St","job_description_customer":"old couch"}`,
		ResponseJSON: `{}`,
	}
	store.quotes[q.QuoteID] = q
	return q
}

func TestRecordCustomerDecisionAccept(t *testing.T) {
	store := newMockStore()
	seedQuote(store)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestService(store, now)

	qr, err := svc.RecordCustomerDecision(context.Background(), "q-1", ActionAccept, DecisionFields{
		Notes:            patch.Set("gate code 1234"),
		RequestedJobDate: patch.Set("2026-03-10"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCustomerAcceptedPendingAdmin, qr.Status)
	require.NotNil(t, qr.CustomerAcceptedAt)
	assert.Equal(t, now, *qr.CustomerAcceptedAt)
	assert.Nil(t, qr.AdminApprovedAt)
	assert.NotEmpty(t, qr.RequestID)
	assert.Equal(t, "q-1", qr.QuoteID)

	require.NotNil(t, qr.CustomerName)
	assert.Equal(t, "Dana", *qr.CustomerName)
	require.NotNil(t, qr.JobDescription)
	assert.Equal(t, "old couch", *qr.JobDescription)
	assert.Equal(t, 130.0, qr.TotalCashCAD)

	require.NotNil(t, qr.Notes)
	assert.Equal(t, "gate code 1234", *qr.Notes)
	require.NotNil(t, qr.RequestedJobDate)
	assert.Equal(t, "2026-03-10", *qr.RequestedJobDate)
	assert.Nil(t, qr.RequestedTimeWindow)
}

func TestRecordCustomerDecisionChangeOfMind(t *testing.T) {
	store := newMockStore()
	seedQuote(store)
	svc := newTestService(store, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	first, err := svc.RecordCustomerDecision(context.Background(), "q-1", ActionAccept, DecisionFields{
		Notes: patch.Set("call ahead"),
	})
	require.NoError(t, err)

	// Decline with no fields: statuses and timestamps flip, notes survive.
	second, err := svc.RecordCustomerDecision(context.Background(), "q-1", ActionDecline, DecisionFields{})
	require.NoError(t, err)

	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, StatusCustomerDeclined, second.Status)
	assert.Nil(t, second.CustomerAcceptedAt)
	assert.Nil(t, second.AdminApprovedAt)
	require.NotNil(t, second.Notes)
	assert.Equal(t, "call ahead", *second.Notes)

	// Accept again with an explicit null clears the notes.
	third, err := svc.RecordCustomerDecision(context.Background(), "q-1", ActionAccept, DecisionFields{
		Notes: patch.Null(),
	})
	require.NoError(t, err)
	assert.Equal(t, first.RequestID, third.RequestID)
	assert.Equal(t, StatusCustomerAcceptedPendingAdmin, third.Status)
	assert.Nil(t, third.Notes)
}

func TestRecordCustomerDecisionErrors(t *testing.T) {
	store := newMockStore()
	seedQuote(store)
	svc := newTestService(store, time.Now())

	_, err := svc.RecordCustomerDecision(context.Background(), "q-1", "maybe", DecisionFields{})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = svc.RecordCustomerDecision(context.Background(), "no-such-quote", ActionAccept, DecisionFields{})
	assert.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestRecordAdminDecisionApproveMaterializesJob(t *testing.T) {
	store := newMockStore()
	seedQuote(store)
	svc := newTestService(store, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	accepted, err := svc.RecordCustomerDecision(context.Background(), "q-1", ActionAccept, DecisionFields{})
	require.NoError(t, err)

	approveAt := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return approveAt }

	qr, job, err := svc.RecordAdminDecision(context.Background(), accepted.RequestID, ActionApprove, patch.String{})
	require.NoError(t, err)

	assert.Equal(t, StatusAdminApproved, qr.Status)
	require.NotNil(t, qr.AdminApprovedAt)
	assert.Equal(t, approveAt, *qr.AdminApprovedAt)

	require.NotNil(t, job)
	assert.Equal(t, JobStatusApprovedPendingSchedule, job.Status)
	assert.Equal(t, accepted.RequestID, job.RequestID)
	assert.Equal(t, "q-1", job.QuoteID)
	assert.Equal(t, 130.0, job.TotalCashCAD)
	assert.Equal(t, 0.0, job.PaidCAD)
	assert.Equal(t, 130.0, job.OwingCAD)

	// Approving again is idempotent: same job, not a second one.
	_, again, err := svc.RecordAdminDecision(context.Background(), accepted.RequestID, ActionApprove, patch.String{})
	require.NoError(t, err)
	assert.Equal(t, job.JobID, again.JobID)
	assert.Len(t, store.jobs, 1)
}

func TestRecordAdminDecisionReject(t *testing.T) {
	store := newMockStore()
	seedQuote(store)
	svc := newTestService(store, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	accepted, err := svc.RecordCustomerDecision(context.Background(), "q-1", ActionAccept, DecisionFields{})
	require.NoError(t, err)

	qr, job, err := svc.RecordAdminDecision(context.Background(), accepted.RequestID, ActionReject, patch.Set("overbooked"))
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, qr.Status)
	assert.Nil(t, qr.AdminApprovedAt)
	require.NotNil(t, qr.Notes)
	assert.Equal(t, "overbooked", *qr.Notes)
	assert.Nil(t, job)
	assert.Empty(t, store.jobs)
}

func TestRecordAdminDecisionErrors(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, time.Now())

	_, _, err := svc.RecordAdminDecision(context.Background(), "r-1", "escalate", patch.String{})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, _, err = svc.RecordAdminDecision(context.Background(), "r-1", ActionApprove, patch.String{})
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
