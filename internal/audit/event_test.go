package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genEventType() gopter.Gen {
	return gen.OneConstOf(
		EventRunStart, EventRunEnd, EventPlaced, EventMissing, EventSkippedDuplicate,
		EventOrphan, EventTokenAssigned, EventExtracted, EventError,
	)
}

func genReasonCode() gopter.Gen {
	return gen.OneConstOf(
		ReasonCode(""), ReasonNotFound, ReasonDuplicateKey, ReasonAlreadyPlaced,
		ReasonUnclaimed, ReasonOverwrote, ReasonRenamed, ReasonDryRun,
	)
}

func genOptionalPath() gopter.Gen {
	return gen.OneGenOf(
		gen.Const(""),
		gen.Identifier().Map(func(s string) string { return "/data/" + s + ".pdf" }),
	)
}

// Feature: audit-trail, Property: JSON Lines Round-Trip
// For any audit event, serializing to a JSON line and parsing it back yields an
// equivalent event, with timestamps kept to the second.
func TestJSONLinesRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("events survive a JSON line round-trip", prop.ForAll(
		func(et EventType, reason ReasonCode, src, dst string, secs int64) bool {
			original := AuditEvent{
				Timestamp:       time.Unix(secs, 0).UTC(),
				RunID:           GenerateRunID(),
				EventType:       et,
				Status:          StatusSuccess,
				SourcePath:      src,
				DestinationPath: dst,
				ReasonCode:      reason,
			}

			data, err := json.Marshal(original)
			if err != nil {
				t.Logf("marshal failed: %v", err)
				return false
			}
			if strings.Contains(string(data), "\n") {
				t.Logf("JSON line contains a newline: %s", data)
				return false
			}

			parsed, err := UnmarshalJSONLine(data)
			if err != nil {
				t.Logf("unmarshal failed: %v", err)
				return false
			}

			return parsed.Timestamp.Equal(original.Timestamp) &&
				parsed.RunID == original.RunID &&
				parsed.EventType == original.EventType &&
				parsed.Status == original.Status &&
				parsed.SourcePath == original.SourcePath &&
				parsed.DestinationPath == original.DestinationPath &&
				parsed.ReasonCode == original.ReasonCode
		},
		genEventType(),
		genReasonCode(),
		genOptionalPath(),
		genOptionalPath(),
		gen.Int64Range(0, 4102444800),
	))

	properties.TestingRun(t)
}

func TestEventSerialization_OptionalFieldsOmitted(t *testing.T) {
	event := AuditEvent{
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		RunID:     "run-1",
		EventType: EventOrphan,
		Status:    StatusSkipped,
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	for _, field := range []string{"sourcePath", "destinationPath", "reasonCode", "errorDetails", "metadata"} {
		if strings.Contains(string(data), field) {
			t.Errorf("expected %q to be omitted, got %s", field, data)
		}
	}
	if !strings.Contains(string(data), `"timestamp":"2024-03-01T10:00:00Z"`) {
		t.Errorf("expected ISO8601 timestamp, got %s", data)
	}
}

func TestUnmarshalJSONLine_RejectsBadTimestamp(t *testing.T) {
	_, err := UnmarshalJSONLine([]byte(`{"timestamp":"yesterday","runId":"x","eventType":"PLACED","status":"SUCCESS"}`))
	if err == nil {
		t.Error("expected an error for a malformed timestamp")
	}
}
