package kafka

import (
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/models"
)

// W3C trace context header keys
const (
	headerTraceParent = "traceparent"
	headerTraceState  = "tracestate"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	Request *models.LinkageRequest
}

// newIncomingMessage converts a raw Kafka message, lifting the trace context
// out of the headers
func newIncomingMessage(msg kafka.Message) *IncomingMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &IncomingMessage{
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Timestamp:   msg.Time,
		Topic:       msg.Topic,
		TraceParent: headers[headerTraceParent],
		TraceState:  headers[headerTraceState],
	}
}

// ParseLinkageRequest parses the message value as a linkage request
func (m *IncomingMessage) ParseLinkageRequest() error {
	var req models.LinkageRequest
	if err := json.Unmarshal(m.Value, &req); err != nil {
		return err
	}
	m.Request = &req
	return nil
}

// GetTenantID returns the tenant ID from the request, falling back to the
// message header
func (m *IncomingMessage) GetTenantID() string {
	if m.Request != nil && m.Request.TenantID != "" {
		return m.Request.TenantID
	}
	return m.Headers["tenant_id"]
}

// GetRequestID returns the producer-assigned request ID, falling back to the
// request_id header and then the message key
func (m *IncomingMessage) GetRequestID() string {
	if m.Request != nil && m.Request.RequestID != "" {
		return m.Request.RequestID
	}
	if id := m.Headers["request_id"]; id != "" {
		return id
	}
	return m.Key
}
