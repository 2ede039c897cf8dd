package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
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

	// Parsed content
	Interaction *models.InteractionMessage
	Signal      *models.SignalMessage
}

// Parse decodes the envelope by its type discriminator. Exactly one of
// Interaction or Signal is set afterwards.
func (m *IncomingMessage) Parse() error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(m.Value, &probe); err != nil {
		return err
	}
	msgType := probe.Type
	if msgType == "" {
		msgType = m.Headers["type"]
	}

	switch msgType {
	case models.MessageTypeInteraction:
		var msg models.InteractionMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			return err
		}
		m.Interaction = &msg
		return nil
	case models.MessageTypeSignal:
		var msg models.SignalMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			return err
		}
		m.Signal = &msg
		return nil
	}

	return fmt.Errorf("unknown message type %q", msgType)
}

// GetTenantID returns the tenant the message belongs to, falling back to
// the tenant_id header.
func (m *IncomingMessage) GetTenantID() string {
	if m.Interaction != nil && m.Interaction.TenantID != "" {
		return m.Interaction.TenantID
	}
	if m.Signal != nil && m.Signal.TenantID != "" {
		return m.Signal.TenantID
	}
	return m.Headers["tenant_id"]
}
