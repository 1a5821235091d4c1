package handlers

import (
	"context"
	"time"

	"baydelivery/db"
	"baydelivery/internal/patch"
	"baydelivery/internal/vision"
	"baydelivery/internal/workflow"
)

type StorageInterface interface {
	CreateQuote(ctx context.Context, q *db.Quote) error
	GetQuote(ctx context.Context, quoteID string) (*db.Quote, error)
	ListQuotes(ctx context.Context, limit int) ([]db.Quote, error)
	SearchQuotes(ctx context.Context, f db.QuoteFilter) ([]db.Quote, error)

	GetQuoteRequest(ctx context.Context, requestID string) (*db.QuoteRequest, error)
	GetQuoteRequestByQuoteID(ctx context.Context, quoteID string) (*db.QuoteRequest, error)
	ListQuoteRequests(ctx context.Context, status string, limit int) ([]db.QuoteRequest, error)

	GetJob(ctx context.Context, jobID string) (*db.Job, error)
	ListJobs(ctx context.Context, status string, limit int) ([]db.Job, error)
	UpdateJobFields(ctx context.Context, jobID string, p db.JobPatch) (*db.Job, error)

	CreateAttachment(ctx context.Context, a *db.Attachment) error
	ListAttachments(ctx context.Context, ownerID string) ([]db.Attachment, error)

	ExportAll(ctx context.Context) (*db.Snapshot, error)
	ImportAll(ctx context.Context, snap *db.Snapshot) (db.RestoredCounts, error)
}

type WorkflowInterface interface {
	RecordCustomerDecision(ctx context.Context, quoteID, action string, fields workflow.DecisionFields) (*db.QuoteRequest, error)
	RecordAdminDecision(ctx context.Context, requestID, action string, notes patch.String) (*db.QuoteRequest, *db.Job, error)
}

// DistanceResolver and ImageEstimator are optional advisory collaborators; a
// nil field on the Handler means the feature is not configured.
type DistanceResolver interface {
	ResolveKM(ctx context.Context, origin, destination string) (float64, error)
}

type ImageEstimator interface {
	EstimateFromImages(ctx context.Context, description string, imageURLs []string) (*vision.Suggestion, error)
}

type BackupVault interface {
	UploadBackup(ctx context.Context, data []byte) (string, error)
	UploadPhoto(ctx context.Context, fileName, contentType string, data []byte) (string, error)
	PruneBackups(ctx context.Context) (int, error)
}

var _ StorageInterface = (*db.Storage)(nil)
var _ WorkflowInterface = (*workflow.Service)(nil)

// clockNow is swapped in tests.
var clockNow = func() time.Time { return time.Now().UTC() }
