package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDecodeIgnoresUnknownTables(t *testing.T) {
	raw := `{
		"schema_version": 1,
		"exported_at": "2026-03-01T10:00:00Z",
		"quotes": [],
		"quote_requests": [],
		"jobs": [],
		"attachments": [],
		"invoices": [{"invoice_id": "i-1"}],
		"sessions": [{"token": "abc"}]
	}`

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	assert.Equal(t, 1, snap.SchemaVersion)
	assert.Empty(t, snap.Quotes)
	assert.Empty(t, snap.Jobs)
}

func TestQuoteBackupRoundTrip(t *testing.T) {
	q := Quote{
		QuoteID:      "q-1",
		CreatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ServiceType:  "haul_away",
		TotalCashCAD: 130,
		TotalEMTCAD:  146.90,
		RequestJSON:  `{"service_type":"haul_away","estimated_hours":2}`,
		ResponseJSON: `{"total_cash_cad":130}`,
	}

	b, err := quoteToBackup(q)
	require.NoError(t, err)
	assert.JSONEq(t, q.RequestJSON, string(b.Request))

	back, err := backupToQuote(b)
	require.NoError(t, err)
	assert.Equal(t, q, back)
}

func TestQuoteBackupRejectsInvalidJSON(t *testing.T) {
	_, err := quoteToBackup(Quote{QuoteID: "q-1", RequestJSON: "{broken", ResponseJSON: "{}"})
	require.Error(t, err)

	_, err = backupToQuote(QuoteBackup{
		QuoteID:  "q-1",
		Request:  json.RawMessage("{broken"),
		Response: json.RawMessage("{}"),
	})
	require.Error(t, err)

	_, err = backupToQuote(QuoteBackup{
		QuoteID:  "q-1",
		Request:  nil,
		Response: json.RawMessage("{}"),
	})
	require.Error(t, err)
}

func TestBackupToQuoteRequiresID(t *testing.T) {
	_, err := backupToQuote(QuoteBackup{
		Request:  json.RawMessage("{}"),
		Response: json.RawMessage("{}"),
	})
	require.Error(t, err)
}

func TestRequestBackupRoundTrip(t *testing.T) {
	name := "Dana"
	notes := "gate code 1234"
	accepted := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	qr := QuoteRequest{
		RequestID:          "r-1",
		QuoteID:            "q-1",
		CreatedAt:          time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Status:             "customer_accepted_pending_admin",
		CustomerName:       &name,
		ServiceType:        "haul_away",
		TotalCashCAD:       130,
		TotalEMTCAD:        146.90,
		Notes:              &notes,
		CustomerAcceptedAt: &accepted,
		RequestJSON:        `{"service_type":"haul_away"}`,
	}

	b, err := requestToBackup(qr)
	require.NoError(t, err)

	back, err := backupToRequest(b)
	require.NoError(t, err)
	assert.Equal(t, qr, back)
}

func TestImportAllValidatesSnapshotUpFront(t *testing.T) {
	s := &Storage{}

	_, err := s.ImportAll(context.Background(), nil)
	require.Error(t, err)

	_, err = s.ImportAll(context.Background(), &Snapshot{SchemaVersion: 0})
	require.Error(t, err)

	_, err = s.ImportAll(context.Background(), &Snapshot{SchemaVersion: SnapshotSchemaVersion + 1})
	require.Error(t, err)
}

func TestBackupToRequestRequiresIDs(t *testing.T) {
	_, err := backupToRequest(QuoteRequestBackup{
		RequestID: "r-1",
		Request:   json.RawMessage("{}"),
	})
	require.Error(t, err)

	_, err = backupToRequest(QuoteRequestBackup{
		QuoteID: "q-1",
		Request: json.RawMessage("{}"),
	})
	require.Error(t, err)
}
