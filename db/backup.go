package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotSchemaVersion is bumped whenever the snapshot shape changes.
// Imports accept snapshots at or below the current version; tables a prior
// version did not have simply restore as empty.
const SnapshotSchemaVersion = 1

// Snapshot is a full-database export. The table list is fixed and explicit,
// never discovered dynamically, so a restore always knows exactly what it is
// rebuilding. Structured text columns are decoded into raw JSON so snapshots
// diff cleanly. Unknown top-level keys in a snapshot file are ignored on
// decode, which is how imports tolerate backups from other schema versions.
type Snapshot struct {
	SchemaVersion int                  `json:"schema_version"`
	ExportedAt    time.Time            `json:"exported_at"`
	Quotes        []QuoteBackup        `json:"quotes"`
	QuoteRequests []QuoteRequestBackup `json:"quote_requests"`
	Jobs          []Job                `json:"jobs"`
	Attachments   []Attachment         `json:"attachments"`
}

// QuoteBackup mirrors a quotes row with its stored JSON columns decoded.
type QuoteBackup struct {
	QuoteID      string          `json:"quote_id"`
	CreatedAt    time.Time       `json:"created_at"`
	ServiceType  string          `json:"service_type"`
	TotalCashCAD float64         `json:"total_cash_cad"`
	TotalEMTCAD  float64         `json:"total_emt_cad"`
	Request      json.RawMessage `json:"request"`
	Response     json.RawMessage `json:"response"`
}

type QuoteRequestBackup struct {
	RequestID           string          `json:"request_id"`
	QuoteID             string          `json:"quote_id"`
	CreatedAt           time.Time       `json:"created_at"`
	Status              string          `json:"status"`
	CustomerName        *string         `json:"customer_name"`
	CustomerPhone       *string         `json:"customer_phone"`
	JobAddress          *string         `json:"job_address"`
	JobDescription      *string         `json:"job_description"`
	ServiceType         string          `json:"service_type"`
	TotalCashCAD        float64         `json:"total_cash_cad"`
	TotalEMTCAD         float64         `json:"total_emt_cad"`
	Notes               *string         `json:"notes"`
	RequestedJobDate    *string         `json:"requested_job_date"`
	RequestedTimeWindow *string         `json:"requested_time_window"`
	CustomerAcceptedAt  *time.Time      `json:"customer_accepted_at"`
	AdminApprovedAt     *time.Time      `json:"admin_approved_at"`
	Request             json.RawMessage `json:"request"`
}

// RestoredCounts reports how many rows each table received on import.
type RestoredCounts struct {
	Quotes        int `json:"quotes"`
	QuoteRequests int `json:"quote_requests"`
	Jobs          int `json:"jobs"`
	Attachments   int `json:"attachments"`
}

func quoteToBackup(q Quote) (QuoteBackup, error) {
	if !json.Valid([]byte(q.RequestJSON)) {
		return QuoteBackup{}, fmt.Errorf("quote %s: stored request_json is not valid JSON", q.QuoteID)
	}
	if !json.Valid([]byte(q.ResponseJSON)) {
		return QuoteBackup{}, fmt.Errorf("quote %s: stored response_json is not valid JSON", q.QuoteID)
	}
	return QuoteBackup{
		QuoteID:      q.QuoteID,
		CreatedAt:    q.CreatedAt,
		ServiceType:  q.ServiceType,
		TotalCashCAD: q.TotalCashCAD,
		TotalEMTCAD:  q.TotalEMTCAD,
		Request:      json.RawMessage(q.RequestJSON),
		Response:     json.RawMessage(q.ResponseJSON),
	}, nil
}

func backupToQuote(b QuoteBackup) (Quote, error) {
	if b.QuoteID == "" {
		return Quote{}, fmt.Errorf("quote row missing quote_id")
	}
	if len(b.Request) == 0 || !json.Valid(b.Request) {
		return Quote{}, fmt.Errorf("quote %s: request payload is not valid JSON", b.QuoteID)
	}
	if len(b.Response) == 0 || !json.Valid(b.Response) {
		return Quote{}, fmt.Errorf("quote %s: response payload is not valid JSON", b.QuoteID)
	}
	return Quote{
		QuoteID:      b.QuoteID,
		CreatedAt:    b.CreatedAt,
		ServiceType:  b.ServiceType,
		TotalCashCAD: b.TotalCashCAD,
		TotalEMTCAD:  b.TotalEMTCAD,
		RequestJSON:  string(b.Request),
		ResponseJSON: string(b.Response),
	}, nil
}

func requestToBackup(qr QuoteRequest) (QuoteRequestBackup, error) {
	if !json.Valid([]byte(qr.RequestJSON)) {
		return QuoteRequestBackup{}, fmt.Errorf("quote request %s: stored request_json is not valid JSON", qr.RequestID)
	}
	return QuoteRequestBackup{
		RequestID:           qr.RequestID,
		QuoteID:             qr.QuoteID,
		CreatedAt:           qr.CreatedAt,
		Status:              qr.Status,
		CustomerName:        qr.CustomerName,
		CustomerPhone:       qr.CustomerPhone,
		JobAddress:          qr.JobAddress,
		JobDescription:      qr.JobDescription,
		ServiceType:         qr.ServiceType,
		TotalCashCAD:        qr.TotalCashCAD,
		TotalEMTCAD:         qr.TotalEMTCAD,
		Notes:               qr.Notes,
		RequestedJobDate:    qr.RequestedJobDate,
		RequestedTimeWindow: qr.RequestedTimeWindow,
		CustomerAcceptedAt:  qr.CustomerAcceptedAt,
		AdminApprovedAt:     qr.AdminApprovedAt,
		Request:             json.RawMessage(qr.RequestJSON),
	}, nil
}

func backupToRequest(b QuoteRequestBackup) (QuoteRequest, error) {
	if b.RequestID == "" || b.QuoteID == "" {
		return QuoteRequest{}, fmt.Errorf("quote request row missing request_id or quote_id")
	}
	if len(b.Request) == 0 || !json.Valid(b.Request) {
		return QuoteRequest{}, fmt.Errorf("quote request %s: request payload is not valid JSON", b.RequestID)
	}
	return QuoteRequest{
		RequestID:           b.RequestID,
		QuoteID:             b.QuoteID,
		CreatedAt:           b.CreatedAt,
		Status:              b.Status,
		CustomerName:        b.CustomerName,
		CustomerPhone:       b.CustomerPhone,
		JobAddress:          b.JobAddress,
		JobDescription:      b.JobDescription,
		ServiceType:         b.ServiceType,
		TotalCashCAD:        b.TotalCashCAD,
		TotalEMTCAD:         b.TotalEMTCAD,
		Notes:               b.Notes,
		RequestedJobDate:    b.RequestedJobDate,
		RequestedTimeWindow: b.RequestedTimeWindow,
		CustomerAcceptedAt:  b.CustomerAcceptedAt,
		AdminApprovedAt:     b.AdminApprovedAt,
		RequestJSON:         string(b.Request),
	}, nil
}

// ExportAll serializes every row of every known table. Rows come out in
// created_at order so consecutive snapshots diff by content, not by ordering.
func (s *Storage) ExportAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		ExportedAt:    time.Now(),
		Quotes:        []QuoteBackup{},
		QuoteRequests: []QuoteRequestBackup{},
		Jobs:          []Job{},
		Attachments:   []Attachment{},
	}

	quotes := []Quote{}
	if err := s.db.SelectContext(ctx, &quotes, `SELECT * FROM quotes ORDER BY created_at, quote_id`); err != nil {
		return nil, fmt.Errorf("export quotes: %w", err)
	}
	for _, q := range quotes {
		b, err := quoteToBackup(q)
		if err != nil {
			return nil, fmt.Errorf("export quotes: %w", err)
		}
		snap.Quotes = append(snap.Quotes, b)
	}

	requests := []QuoteRequest{}
	if err := s.db.SelectContext(ctx, &requests, `SELECT * FROM quote_requests ORDER BY created_at, request_id`); err != nil {
		return nil, fmt.Errorf("export quote_requests: %w", err)
	}
	for _, qr := range requests {
		b, err := requestToBackup(qr)
		if err != nil {
			return nil, fmt.Errorf("export quote_requests: %w", err)
		}
		snap.QuoteRequests = append(snap.QuoteRequests, b)
	}

	if err := s.db.SelectContext(ctx, &snap.Jobs, `SELECT * FROM jobs ORDER BY created_at, job_id`); err != nil {
		return nil, fmt.Errorf("export jobs: %w", err)
	}
	if err := s.db.SelectContext(ctx, &snap.Attachments, `SELECT * FROM attachments ORDER BY created_at, attachment_id`); err != nil {
		return nil, fmt.Errorf("export attachments: %w", err)
	}

	return snap, nil
}

// ImportAll is destructive-then-rebuild inside one transaction: every known
// table is cleared and repopulated from the snapshot. Any failure, such as a
// row that will not map or an invalid embedded payload, rolls the whole import back, so
// the database is never left half-restored. Integrity constraints come from
// the migrated schema and are in force for every insert.
func (s *Storage) ImportAll(ctx context.Context, snap *Snapshot) (RestoredCounts, error) {
	var counts RestoredCounts

	if snap == nil {
		return counts, fmt.Errorf("import: nil snapshot")
	}
	if snap.SchemaVersion < 1 || snap.SchemaVersion > SnapshotSchemaVersion {
		return counts, fmt.Errorf("import: unsupported snapshot schema_version %d", snap.SchemaVersion)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("import: begin: %w", err)
	}
	defer tx.Rollback()

	// Children before parents.
	for _, table := range []string{"attachments", "jobs", "quote_requests", "quotes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return RestoredCounts{}, fmt.Errorf("import: clear %s: %w", table, err)
		}
	}

	for _, b := range snap.Quotes {
		q, err := backupToQuote(b)
		if err != nil {
			return RestoredCounts{}, fmt.Errorf("import: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO quotes
                (quote_id, created_at, service_type, total_cash_cad, total_emt_cad, request_json, response_json)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.QuoteID, q.CreatedAt, q.ServiceType, q.TotalCashCAD, q.TotalEMTCAD, q.RequestJSON, q.ResponseJSON)
		if err != nil {
			return RestoredCounts{}, fmt.Errorf("import quote %s: %w", q.QuoteID, err)
		}
		counts.Quotes++
	}

	for _, b := range snap.QuoteRequests {
		qr, err := backupToRequest(b)
		if err != nil {
			return RestoredCounts{}, fmt.Errorf("import: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO quote_requests
                (request_id, quote_id, created_at, status,
                 customer_name, customer_phone, job_address, job_description,
                 service_type, total_cash_cad, total_emt_cad,
                 notes, requested_job_date, requested_time_window,
                 customer_accepted_at, admin_approved_at, request_json)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			qr.RequestID, qr.QuoteID, qr.CreatedAt, qr.Status,
			qr.CustomerName, qr.CustomerPhone, qr.JobAddress, qr.JobDescription,
			qr.ServiceType, qr.TotalCashCAD, qr.TotalEMTCAD,
			qr.Notes, qr.RequestedJobDate, qr.RequestedTimeWindow,
			qr.CustomerAcceptedAt, qr.AdminApprovedAt, qr.RequestJSON)
		if err != nil {
			return RestoredCounts{}, fmt.Errorf("import quote request %s: %w", qr.RequestID, err)
		}
		counts.QuoteRequests++
	}

	for _, j := range snap.Jobs {
		if j.JobID == "" || j.QuoteID == "" {
			return RestoredCounts{}, fmt.Errorf("import: job row missing job_id or quote_id")
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO jobs
                (job_id, request_id, quote_id, created_at, status,
                 customer_name, customer_phone, job_address, job_description,
                 service_type, total_cash_cad, total_emt_cad, paid_cad, owing_cad, notes)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			j.JobID, j.RequestID, j.QuoteID, j.CreatedAt, j.Status,
			j.CustomerName, j.CustomerPhone, j.JobAddress, j.JobDescription,
			j.ServiceType, j.TotalCashCAD, j.TotalEMTCAD, j.PaidCAD, j.OwingCAD, j.Notes)
		if err != nil {
			return RestoredCounts{}, fmt.Errorf("import job %s: %w", j.JobID, err)
		}
		counts.Jobs++
	}

	for _, a := range snap.Attachments {
		if a.AttachmentID == "" {
			return RestoredCounts{}, fmt.Errorf("import: attachment row missing attachment_id")
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO attachments
                (attachment_id, owner_id, kind, file_name, mime_type, size_bytes, storage_url, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.AttachmentID, a.OwnerID, a.Kind, a.FileName, a.MimeType, a.SizeBytes, a.StorageURL, a.CreatedAt)
		if err != nil {
			return RestoredCounts{}, fmt.Errorf("import attachment %s: %w", a.AttachmentID, err)
		}
		counts.Attachments++
	}

	if err := tx.Commit(); err != nil {
		return RestoredCounts{}, fmt.Errorf("import: commit: %w", err)
	}
	return counts, nil
}
