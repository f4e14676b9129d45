package integration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/linkage"
	"github.com/Ramsey-B/fern/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// requestPayload is a realistic wire payload as the upstream adapter sends it.
const requestPayload = `{
	"tenant_id": "test-tenant",
	"request_id": "req-001",
	"source_records": [
		{
			"record_id": "src-1",
			"name": "Arthur  DENT",
			"email": "Arthur.Dent@Example.com",
			"date_of_birth": "1978-03-08",
			"phone_numbers": ["+44 (20) 7946-0301"]
		},
		{
			"record_id": "src-2",
			"name": "Prefect Ford",
			"email": "ford@example.com",
			"date_of_birth": "1975-10-12",
			"phone_numbers": ["+44 20 7946 0302"]
		},
		{
			"record_id": "src-3",
			"name": "Zaphod Beeblebrox",
			"date_of_birth": "1970-01-01"
		}
	],
	"target_records": [
		{
			"record_id": "tgt-1",
			"name": "arthur dent",
			"email": "arthur.dent@example.com",
			"date_of_birth": "1978-03-08",
			"phone_numbers": ["442079460301"]
		},
		{
			"record_id": "tgt-2",
			"name": "Ford Prefect",
			"email": "ford@example.com",
			"date_of_birth": "1975-10-12",
			"phone_numbers": ["44 20 7946 0302"]
		},
		{
			"record_id": "tgt-3",
			"name": "Tricia McMillan",
			"email": "trillian@example.com",
			"date_of_birth": "1980-06-25"
		}
	],
	"options": {
		"composite_threshold": 80
	}
}`

func TestLinkageRequestFlow(t *testing.T) {
	var req models.LinkageRequest
	require.NoError(t, json.Unmarshal([]byte(requestPayload), &req))
	require.Equal(t, "test-tenant", req.TenantID)
	require.Len(t, req.SourceRecords, 3)
	require.Len(t, req.TargetRecords, 3)
	require.NotNil(t, req.Options)
	require.NotNil(t, req.Options.CompositeThreshold)

	cfg := linkage.DefaultConfig().ApplyOptions(req.Options)
	assert.Equal(t, 80.0, cfg.CompositeThreshold)

	engine, err := linkage.NewEngine(getTestLogger(), cfg)
	require.NoError(t, err)

	report, err := engine.Run(context.Background(), req.SourceRecords, req.TargetRecords, nil)
	require.NoError(t, err)

	// Phones differ in formatting only, so the pairs share a phone block.
	// The swapped-token name on src-2 still scores 100 after token sort.
	matched := map[string]string{}
	for _, m := range report.Matches {
		matched[m.SourceID] = m.TargetID
	}
	assert.Equal(t, "tgt-1", matched["src-1"])
	assert.Equal(t, "tgt-2", matched["src-2"])

	// src-3 and tgt-3 share nothing; both land in the residue
	require.Len(t, report.UnmatchedSource, 1)
	assert.Equal(t, "src-3", report.UnmatchedSource[0].RecordID)
	require.Len(t, report.UnmatchedTarget, 1)
	assert.Equal(t, "tgt-3", report.UnmatchedTarget[0].RecordID)
}

func TestLinkageRequestFingerprintStability(t *testing.T) {
	var first models.LinkageRequest
	require.NoError(t, json.Unmarshal([]byte(requestPayload), &first))

	var second models.LinkageRequest
	require.NoError(t, json.Unmarshal([]byte(requestPayload), &second))
	second.RequestID = "req-redelivered"

	a, err := fingerprint.GenerateRequest(first)
	require.NoError(t, err)
	b, err := fingerprint.GenerateRequest(second)
	require.NoError(t, err)

	assert.Equal(t, a, b, "redelivery with a new request id must fingerprint identically")
}

func TestLinkageRequestInvalidOptions(t *testing.T) {
	var req models.LinkageRequest
	require.NoError(t, json.Unmarshal([]byte(requestPayload), &req))

	badWeights := models.FieldWeights{Name: 0.9, Email: 0.9, DOB: 0.1, Phone: 0.1}
	req.Options.Weights = &badWeights

	_, err := linkage.NewEngine(getTestLogger(), linkage.DefaultConfig().ApplyOptions(req.Options))
	assert.ErrorIs(t, err, linkage.ErrInvalidConfiguration)
}
