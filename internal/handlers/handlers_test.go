package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"baydelivery/db"
	"baydelivery/internal/handlers"
	"baydelivery/internal/handlers/testutils"
	"baydelivery/internal/patch"
	"baydelivery/internal/pricing"
	"baydelivery/internal/workflow"
)

// MockStorage implements handlers.StorageInterface.
type MockStorage struct {
	createdQuote *db.Quote

	GetQuoteFunc        func(ctx context.Context, quoteID string) (*db.Quote, error)
	ListQuotesFunc      func(ctx context.Context, limit int) ([]db.Quote, error)
	SearchQuotesFunc    func(ctx context.Context, f db.QuoteFilter) ([]db.Quote, error)
	UpdateJobFieldsFunc func(ctx context.Context, jobID string, p db.JobPatch) (*db.Job, error)
	ImportAllFunc       func(ctx context.Context, snap *db.Snapshot) (db.RestoredCounts, error)
}

func (m *MockStorage) CreateQuote(ctx context.Context, q *db.Quote) error {
	m.createdQuote = q
	return nil
}

func (m *MockStorage) GetQuote(ctx context.Context, quoteID string) (*db.Quote, error) {
	if m.GetQuoteFunc != nil {
		return m.GetQuoteFunc(ctx, quoteID)
	}
	return nil, db.ErrNotFound
}

func (m *MockStorage) ListQuotes(ctx context.Context, limit int) ([]db.Quote, error) {
	if m.ListQuotesFunc != nil {
		return m.ListQuotesFunc(ctx, limit)
	}
	return []db.Quote{}, nil
}

func (m *MockStorage) SearchQuotes(ctx context.Context, f db.QuoteFilter) ([]db.Quote, error) {
	if m.SearchQuotesFunc != nil {
		return m.SearchQuotesFunc(ctx, f)
	}
	return []db.Quote{}, nil
}

func (m *MockStorage) GetQuoteRequest(ctx context.Context, requestID string) (*db.QuoteRequest, error) {
	return nil, db.ErrNotFound
}

func (m *MockStorage) GetQuoteRequestByQuoteID(ctx context.Context, quoteID string) (*db.QuoteRequest, error) {
	return nil, db.ErrNotFound
}

func (m *MockStorage) ListQuoteRequests(ctx context.Context, status string, limit int) ([]db.QuoteRequest, error) {
	return []db.QuoteRequest{}, nil
}

func (m *MockStorage) GetJob(ctx context.Context, jobID string) (*db.Job, error) {
	return nil, db.ErrNotFound
}

func (m *MockStorage) ListJobs(ctx context.Context, status string, limit int) ([]db.Job, error) {
	return []db.Job{}, nil
}

func (m *MockStorage) UpdateJobFields(ctx context.Context, jobID string, p db.JobPatch) (*db.Job, error) {
	if m.UpdateJobFieldsFunc != nil {
		return m.UpdateJobFieldsFunc(ctx, jobID, p)
	}
	return nil, db.ErrNotFound
}

func (m *MockStorage) CreateAttachment(ctx context.Context, a *db.Attachment) error { return nil }

func (m *MockStorage) ListAttachments(ctx context.Context, ownerID string) ([]db.Attachment, error) {
	return []db.Attachment{}, nil
}

func (m *MockStorage) ExportAll(ctx context.Context) (*db.Snapshot, error) {
	return &db.Snapshot{
		SchemaVersion: db.SnapshotSchemaVersion,
		ExportedAt:    time.Now(),
		Quotes:        []db.QuoteBackup{},
		QuoteRequests: []db.QuoteRequestBackup{},
		Jobs:          []db.Job{},
		Attachments:   []db.Attachment{},
	}, nil
}

func (m *MockStorage) ImportAll(ctx context.Context, snap *db.Snapshot) (db.RestoredCounts, error) {
	if m.ImportAllFunc != nil {
		return m.ImportAllFunc(ctx, snap)
	}
	return db.RestoredCounts{}, nil
}

// MockFlow implements handlers.WorkflowInterface.
type MockFlow struct {
	lastFields workflow.DecisionFields

	CustomerFunc func(ctx context.Context, quoteID, action string, fields workflow.DecisionFields) (*db.QuoteRequest, error)
	AdminFunc    func(ctx context.Context, requestID, action string, notes patch.String) (*db.QuoteRequest, *db.Job, error)
}

func (m *MockFlow) RecordCustomerDecision(ctx context.Context, quoteID, action string, fields workflow.DecisionFields) (*db.QuoteRequest, error) {
	m.lastFields = fields
	if m.CustomerFunc != nil {
		return m.CustomerFunc(ctx, quoteID, action, fields)
	}
	return nil, workflow.ErrQuoteNotFound
}

func (m *MockFlow) RecordAdminDecision(ctx context.Context, requestID, action string, notes patch.String) (*db.QuoteRequest, *db.Job, error) {
	if m.AdminFunc != nil {
		return m.AdminFunc(ctx, requestID, action, notes)
	}
	return nil, nil, workflow.ErrRequestNotFound
}

func newTestHandler(store *MockStorage, flow *MockFlow) *handlers.Handler {
	return handlers.NewHandler(store, flow, pricing.DefaultConfig(), zap.NewNop())
}

func TestCalculateQuoteHandler(t *testing.T) {
	store := &MockStorage{}
	h := newTestHandler(store, &MockFlow{})

	body := `{"service_type": "haul_away", "estimated_hours": 2, "crew_size": 1, "garbage_bag_count": 3,
		"customer_name": "Dana", "customer_phone": "416-555-0199"}`
	req := httptest.NewRequest(http.MethodPost, "/api/quote", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.CalculateQuoteHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total_cash_cad":130`)
	assert.Contains(t, rr.Body.String(), `"total_emt_cad":146.9`)
	assert.Contains(t, rr.Body.String(), `"quote_id"`)
	// The internal breakdown never reaches the customer.
	assert.NotContains(t, rr.Body.String(), "_internal")

	require.NotNil(t, store.createdQuote)
	assert.Equal(t, body, store.createdQuote.RequestJSON)
	assert.Contains(t, store.createdQuote.ResponseJSON, "_internal")
	assert.Equal(t, "haul_away", store.createdQuote.ServiceType)
}

func TestCalculateQuoteHandlerNormalizesAlias(t *testing.T) {
	store := &MockStorage{}
	h := newTestHandler(store, &MockFlow{})

	req := httptest.NewRequest(http.MethodPost, "/api/quote",
		strings.NewReader(`{"service_type": "junk_removal", "estimated_hours": 2, "crew_size": 1}`))
	rr := httptest.NewRecorder()

	h.CalculateQuoteHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"service_type":"haul_away"`)
}

func TestCalculateQuoteHandlerValidation(t *testing.T) {
	h := newTestHandler(&MockStorage{}, &MockFlow{})

	cases := []struct {
		name string
		body string
	}{
		{"unknown service", `{"service_type": "lawn_care"}`},
		{"negative hours", `{"service_type": "haul_away", "estimated_hours": -1}`},
		{"negative crew", `{"service_type": "haul_away", "crew_size": -2}`},
		{"bad scrap location", `{"service_type": "scrap_pickup", "scrap_pickup_location": "garage"}`},
		{"small move missing addresses", `{"service_type": "small_move", "estimated_hours": 2, "job_address": "12 King St"}`},
		{"not json", `{broken`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/quote", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.CalculateQuoteHandler(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGetQuoteHandler(t *testing.T) {
	store := &MockStorage{
		GetQuoteFunc: func(ctx context.Context, quoteID string) (*db.Quote, error) {
			if quoteID != "q-1" {
				return nil, db.ErrNotFound
			}
			return &db.Quote{QuoteID: "q-1", ServiceType: "haul_away", TotalCashCAD: 130}, nil
		},
	}
	h := newTestHandler(store, &MockFlow{})

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodGet, "/api/quotes/q-1", nil),
		map[string]string{"quoteId": "q-1"})
	rr := httptest.NewRecorder()
	h.GetQuoteHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"quote_id":"q-1"`)

	req = testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodGet, "/api/quotes/nope", nil),
		map[string]string{"quoteId": "nope"})
	rr = httptest.NewRecorder()
	h.GetQuoteHandler(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCustomerDecisionHandler(t *testing.T) {
	flow := &MockFlow{
		CustomerFunc: func(ctx context.Context, quoteID, action string, fields workflow.DecisionFields) (*db.QuoteRequest, error) {
			if quoteID != "q-1" {
				return nil, workflow.ErrQuoteNotFound
			}
			if action != workflow.ActionAccept && action != workflow.ActionDecline {
				return nil, workflow.ErrUnknownAction
			}
			return &db.QuoteRequest{RequestID: "r-1", QuoteID: quoteID, Status: workflow.StatusCustomerAcceptedPendingAdmin}, nil
		},
	}
	h := newTestHandler(&MockStorage{}, flow)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/quotes/q-1/decision",
			strings.NewReader(`{"action": "accept", "notes": "gate code 1234", "requested_time_window": null}`)),
		map[string]string{"quoteId": "q-1"})
	rr := httptest.NewRecorder()
	h.CustomerDecisionHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"customer_accepted_pending_admin"`)

	// Tri-state fields: sent value, explicit null, and omitted.
	assert.True(t, flow.lastFields.Notes.Present)
	require.NotNil(t, flow.lastFields.Notes.Value)
	assert.Equal(t, "gate code 1234", *flow.lastFields.Notes.Value)
	assert.True(t, flow.lastFields.RequestedTimeWindow.Present)
	assert.Nil(t, flow.lastFields.RequestedTimeWindow.Value)
	assert.False(t, flow.lastFields.RequestedJobDate.Present)
}

func TestCustomerDecisionHandlerErrors(t *testing.T) {
	flow := &MockFlow{
		CustomerFunc: func(ctx context.Context, quoteID, action string, fields workflow.DecisionFields) (*db.QuoteRequest, error) {
			if action != workflow.ActionAccept && action != workflow.ActionDecline {
				return nil, workflow.ErrUnknownAction
			}
			return nil, workflow.ErrQuoteNotFound
		},
	}
	h := newTestHandler(&MockStorage{}, flow)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/quotes/q-1/decision", strings.NewReader(`{"action": "maybe"}`)),
		map[string]string{"quoteId": "q-1"})
	rr := httptest.NewRecorder()
	h.CustomerDecisionHandler(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/quotes/nope/decision", strings.NewReader(`{"action": "accept"}`)),
		map[string]string{"quoteId": "nope"})
	rr = httptest.NewRecorder()
	h.CustomerDecisionHandler(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminDecisionHandler(t *testing.T) {
	flow := &MockFlow{
		AdminFunc: func(ctx context.Context, requestID, action string, notes patch.String) (*db.QuoteRequest, *db.Job, error) {
			qr := &db.QuoteRequest{RequestID: requestID, QuoteID: "q-1", Status: workflow.StatusAdminApproved}
			if action == workflow.ActionReject {
				qr.Status = workflow.StatusRejected
				return qr, nil, nil
			}
			return qr, &db.Job{JobID: "j-1", RequestID: requestID, QuoteID: "q-1",
				Status: workflow.JobStatusApprovedPendingSchedule, TotalCashCAD: 130, OwingCAD: 130}, nil
		},
	}
	h := newTestHandler(&MockStorage{}, flow)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/requests/r-1/admin-decision", strings.NewReader(`{"action": "approve"}`)),
		map[string]string{"requestId": "r-1"})
	rr := httptest.NewRecorder()
	h.AdminDecisionHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"admin_approved"`)
	assert.Contains(t, rr.Body.String(), `"job_id":"j-1"`)

	req = testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/requests/r-1/admin-decision", strings.NewReader(`{"action": "reject"}`)),
		map[string]string{"requestId": "r-1"})
	rr = httptest.NewRecorder()
	h.AdminDecisionHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"rejected"`)
	assert.NotContains(t, rr.Body.String(), `"job"`)
}

func TestUpdateJobHandler(t *testing.T) {
	store := &MockStorage{
		UpdateJobFieldsFunc: func(ctx context.Context, jobID string, p db.JobPatch) (*db.Job, error) {
			if jobID != "j-1" {
				return nil, db.ErrNotFound
			}
			job := &db.Job{JobID: jobID, TotalCashCAD: 130, OwingCAD: 130}
			if p.PaidCAD != nil {
				job.PaidCAD = *p.PaidCAD
				job.OwingCAD = job.TotalCashCAD - *p.PaidCAD
			}
			return job, nil
		},
	}
	h := newTestHandler(store, &MockFlow{})

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPatch, "/api/jobs/j-1", strings.NewReader(`{"paid_cad": 50}`)),
		map[string]string{"jobId": "j-1"})
	rr := httptest.NewRecorder()
	h.UpdateJobHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"owing_cad":80`)

	req = testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPatch, "/api/jobs/j-1", strings.NewReader(`{"paid_cad": -5}`)),
		map[string]string{"jobId": "j-1"})
	rr = httptest.NewRecorder()
	h.UpdateJobHandler(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPatch, "/api/jobs/nope", strings.NewReader(`{"status": "done"}`)),
		map[string]string{"jobId": "nope"})
	rr = httptest.NewRecorder()
	h.UpdateJobHandler(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestImportBackupHandler(t *testing.T) {
	store := &MockStorage{
		ImportAllFunc: func(ctx context.Context, snap *db.Snapshot) (db.RestoredCounts, error) {
			return db.RestoredCounts{Quotes: 2, QuoteRequests: 1}, nil
		},
	}
	h := newTestHandler(store, &MockFlow{})

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import",
		strings.NewReader(`{"schema_version": 1, "quotes": [], "quote_requests": [], "jobs": [], "attachments": []}`))
	rr := httptest.NewRecorder()
	h.ImportBackupHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"quotes":2`)

	req = httptest.NewRequest(http.MethodPost, "/api/backup/import", strings.NewReader(`{broken`))
	rr = httptest.NewRecorder()
	h.ImportBackupHandler(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExportBackupHandler(t *testing.T) {
	h := newTestHandler(&MockStorage{}, &MockFlow{})

	req := httptest.NewRequest(http.MethodGet, "/api/backup/export", nil)
	rr := httptest.NewRecorder()
	h.ExportBackupHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"schema_version":1`)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "bay_delivery_backup.json")
}

func TestOptionalCollaboratorsNotConfigured(t *testing.T) {
	h := newTestHandler(&MockStorage{}, &MockFlow{})

	rr := httptest.NewRecorder()
	h.DistanceHandler(rr, httptest.NewRequest(http.MethodGet, "/api/distance?origin=a&destination=b", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.EstimateFromPhotosHandler(rr, httptest.NewRequest(http.MethodPost, "/api/estimate",
		strings.NewReader(`{"image_urls": ["https://example.com/1.jpg"]}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.UploadBackupHandler(rr, httptest.NewRequest(http.MethodPost, "/api/backup/upload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.UploadAttachmentHandler(rr, httptest.NewRequest(http.MethodPost, "/api/attachments", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
