package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alera-fm/alera-backend/pkg/config"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/outbox"
	"github.com/alera-fm/alera-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	releaseID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.ReleaseScanStatusChangedEvent{
		ReleaseID: releaseID,
		ArtistID:  uuid.New(),
		Current:   enums.ReleaseScanFlagged,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventReleaseScanStatusChanged,
		AggregateType: enums.AggregateRelease,
		AggregateID:   releaseID.String(),
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "release-events" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.ReleaseScanStatusChangedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.ReleaseID != releaseID || payload.Current != enums.ReleaseScanFlagged {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing")
	}
}

func TestEventRegistryCoversEveryEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventAudioScanCompleted,
		enums.EventAudioScanReviewed,
		enums.EventReleaseScanStatusChanged,
		enums.EventReleaseSubmittedForReview,
		enums.EventReleaseStatusChanged,
	} {
		if _, ok := reg.entries[eventType]; !ok {
			t.Fatalf("event type %s not registered", eventType)
		}
	}
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	scanPayload := mustEnvelope(t, []byte(`{"scan_id":1}`))

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "release_deleted",
			AggregateType: enums.AggregateRelease,
			AggregateID:   uuid.NewString(),
			Payload:       scanPayload,
		},
		"aggregate mismatch": {
			EventType:     enums.EventAudioScanCompleted,
			AggregateType: enums.AggregateRelease,
			AggregateID:   "1",
			Payload:       scanPayload,
		},
		"missing aggregate id": {
			EventType:     enums.EventAudioScanCompleted,
			AggregateType: enums.AggregateAudioScan,
			AggregateID:   " ",
			Payload:       scanPayload,
		},
		"null payload": {
			EventType:     enums.EventAudioScanCompleted,
			AggregateType: enums.AggregateAudioScan,
			AggregateID:   "1",
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventAudioScanCompleted,
			AggregateType: enums.AggregateAudioScan,
			AggregateID:   "1",
			Payload:       json.RawMessage(`{"version":`),
		},
	}

	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatalf("expected error without topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{ReleaseEventsTopic: "release-events"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
