package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func strPtr(s string) *string { return &s }

func sampleRequest() models.LinkageRequest {
	return models.LinkageRequest{
		TenantID: "tenant-1",
		SourceRecords: []models.Record{
			{RecordID: "s1", Name: strPtr("John Smith"), PhoneNumbers: []string{"555-123-4567"}},
		},
		TargetRecords: []models.Record{
			{RecordID: "t1", Name: strPtr("John Smith")},
		},
	}
}

func TestGenerateRequestDeterministic(t *testing.T) {
	a, err := GenerateRequest(sampleRequest())
	require.NoError(t, err)
	b, err := GenerateRequest(sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestGenerateRequestIgnoresRequestID(t *testing.T) {
	first := sampleRequest()
	first.RequestID = "delivery-1"
	second := sampleRequest()
	second.RequestID = "delivery-2"

	a, err := GenerateRequest(first)
	require.NoError(t, err)
	b, err := GenerateRequest(second)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerateRequestSensitiveToPayload(t *testing.T) {
	base, err := GenerateRequest(sampleRequest())
	require.NoError(t, err)

	changed := sampleRequest()
	changed.SourceRecords[0].Name = strPtr("Jane Smith")
	other, err := GenerateRequest(changed)
	require.NoError(t, err)

	assert.NotEqual(t, base, other)
}

func TestGenerateRequestSensitiveToRecordOrder(t *testing.T) {
	two := sampleRequest()
	two.SourceRecords = append(two.SourceRecords, models.Record{RecordID: "s2", Name: strPtr("Mary Major")})

	reversed := sampleRequest()
	reversed.SourceRecords = []models.Record{two.SourceRecords[1], two.SourceRecords[0]}

	a, err := GenerateRequest(two)
	require.NoError(t, err)
	b, err := GenerateRequest(reversed)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestGenerateKeyOrderIndependent(t *testing.T) {
	a := Generate(map[string]any{"x": 1, "y": "z"})
	b := Generate(map[string]any{"y": "z", "x": 1})
	assert.Equal(t, a, b)
}

func TestGenerateFromJSONInvalid(t *testing.T) {
	_, err := GenerateFromJSON([]byte("not json"))
	assert.Error(t, err)
}
