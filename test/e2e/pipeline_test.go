package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type relationshipResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Tier      string `json:"tier"`
	Archetype string `json:"archetype"`
}

type scoreResponse struct {
	RelationshipID string  `json:"relationship_id"`
	Current        float64 `json:"current"`
	Checkpoint     *struct {
		Score       float64   `json:"score"`
		LastEventAt time.Time `json:"last_event_at"`
	} `json:"checkpoint"`
}

type networkHealthResponse struct {
	Overall float64 `json:"overall"`
	Count   int     `json:"count"`
}

type streakResponse struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

type suggestionListResponse struct {
	Suggestions []struct {
		RelationshipID string  `json:"relationship_id"`
		Reason         string  `json:"reason"`
		DriftSeverity  float64 `json:"drift_severity"`
		ExpectedDays   int     `json:"expected_days"`
		ActualDays     int     `json:"actual_days"`
	} `json:"suggestions"`
	GeneratedAt time.Time `json:"generated_at"`
}

type insightResponse struct {
	ID             string  `json:"id"`
	RuleID         string  `json:"rule_id"`
	RelationshipID *string `json:"relationship_id"`
	Status         string  `json:"status"`
}

type reconcileResponse struct {
	Checked     int `json:"checked"`
	Invalidated int `json:"invalidated"`
	Expired     int `json:"expired"`
	Remaining   int `json:"remaining"`
}

// TestInteractionIngestUpdatesScore tests the bus ingest path:
// host app → Kafka → consumer → event store → score orchestrator.
func TestInteractionIngestUpdatesScore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := DefaultConfig()
	RequireService(t, cfg.FernURL)

	client := NewHTTPClient(cfg.FernURL, cfg.TestTenantID)
	kafkaHelper := NewKafkaHelper(cfg.KafkaBrokers)
	ctx := context.Background()

	// Step 1: Create a relationship over the API
	t.Log("Creating relationship...")
	resp, err := client.Post("/api/v1/relationships", map[string]any{
		"name":      "Ingest Test Friend",
		"tier":      "close",
		"archetype": "anchor",
	})
	if err != nil {
		t.Fatalf("Failed to create relationship: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 creating relationship, got %d", resp.StatusCode)
	}
	rel, err := ParseResponse[relationshipResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse relationship: %v", err)
	}

	// Step 2: Publish a completed interaction to the ingest topic
	eventID := fmt.Sprintf("e2e-event-%d", time.Now().UnixNano())
	t.Logf("Publishing interaction %s to %s...", eventID, cfg.InputTopic)
	envelope, _ := json.Marshal(map[string]any{
		"type":             "interaction.logged",
		"tenant_id":        cfg.TestTenantID,
		"event_id":         eventID,
		"relationship_ids": []string{rel.ID},
		"category":         "shared_meal",
		"status":           "completed",
		"occurred_at":      time.Now().UTC(),
	})
	if err := kafkaHelper.ProduceMessage(ctx, cfg.InputTopic, cfg.TestTenantID, envelope); err != nil {
		t.Fatalf("Failed to publish interaction: %v", err)
	}

	// Step 3: Wait for the score to reflect the interaction
	t.Log("Waiting for score...")
	var score scoreResponse
	ok := WaitFor(t, 30*time.Second, func() bool {
		resp, err := client.Get("/api/v1/relationships/" + rel.ID + "/score")
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		score, err = ParseResponse[scoreResponse](resp)
		return err == nil && score.Current > 0 && score.Checkpoint != nil
	})
	if !ok {
		t.Fatalf("Score for %s never reflected the ingested interaction", rel.ID)
	}
	t.Logf("Score is %.3f", score.Current)

	// Step 4: The ingested event is queryable with its supplied ID
	resp, err = client.Get("/api/v1/events/" + eventID)
	if err != nil {
		t.Fatalf("Failed to get event: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 getting ingested event, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Step 5: Network health covers the relationship
	resp, err = client.Get("/api/v1/network-health")
	if err != nil {
		t.Fatalf("Failed to get network health: %v", err)
	}
	health, err := ParseResponse[networkHealthResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse network health: %v", err)
	}
	if health.Count < 1 || health.Overall <= 0 {
		t.Fatalf("Expected positive network health, got %+v", health)
	}
}

// TestSignalIngestExtendsStreak tests that activity signals reach streak
// continuity without touching relationship scores.
func TestSignalIngestExtendsStreak(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := DefaultConfig()
	RequireService(t, cfg.FernURL)

	client := NewHTTPClient(cfg.FernURL, cfg.TestTenantID)
	kafkaHelper := NewKafkaHelper(cfg.KafkaBrokers)
	ctx := context.Background()

	// Step 1: Publish a journal signal to the ingest topic
	t.Log("Publishing journal signal...")
	envelope, _ := json.Marshal(map[string]any{
		"type":        "signal.logged",
		"tenant_id":   cfg.TestTenantID,
		"kind":        "journal",
		"occurred_at": time.Now().UTC(),
	})
	if err := kafkaHelper.ProduceMessage(ctx, cfg.InputTopic, cfg.TestTenantID, envelope); err != nil {
		t.Fatalf("Failed to publish signal: %v", err)
	}

	// Step 2: Wait for the streak to count today
	t.Log("Waiting for streak...")
	var streak streakResponse
	ok := WaitFor(t, 30*time.Second, func() bool {
		resp, err := client.Get("/api/v1/streak")
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		streak, err = ParseResponse[streakResponse](resp)
		return err == nil && streak.CurrentStreak >= 1
	})
	if !ok {
		t.Fatal("Streak never counted the ingested signal")
	}
	t.Logf("Current streak is %d", streak.CurrentStreak)

	// Step 3: The API signal path lands in the same history
	resp, err := client.Post("/api/v1/signals", map[string]any{
		"kind": "capacity_checkin",
	})
	if err != nil {
		t.Fatalf("Failed to post signal: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 posting signal, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = client.Get("/api/v1/signals?kind=capacity_checkin")
	if err != nil {
		t.Fatalf("Failed to list signals: %v", err)
	}
	signals, err := ParseResponse[[]map[string]any](resp)
	if err != nil {
		t.Fatalf("Failed to parse signals: %v", err)
	}
	if len(signals) < 1 {
		t.Fatal("Expected at least one capacity_checkin signal")
	}
}

// TestInsightLifecycle tests suggestion generation, promotion to a durable
// insight, and reconciliation invalidating it once the drift is addressed.
func TestInsightLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := DefaultConfig()
	RequireService(t, cfg.FernURL)

	client := NewHTTPClient(cfg.FernURL, cfg.TestTenantID)
	kafkaHelper := NewKafkaHelper(cfg.KafkaBrokers)
	ctx := context.Background()
	testStart := time.Now()

	// Step 1: A close relationship last seen 30 days ago
	t.Log("Creating drifted relationship...")
	resp, err := client.Post("/api/v1/relationships", map[string]any{
		"name":      "Drifted Friend",
		"tier":      "close",
		"archetype": "nurturer",
	})
	if err != nil {
		t.Fatalf("Failed to create relationship: %v", err)
	}
	rel, err := ParseResponse[relationshipResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse relationship: %v", err)
	}

	resp, err = client.Post("/api/v1/events", map[string]any{
		"relationship_ids": []string{rel.ID},
		"category":         "text_call",
		"status":           "completed",
		"occurred_at":      time.Now().UTC().AddDate(0, 0, -30),
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 creating event, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Step 2: The drift shows up as a suggestion
	t.Log("Generating suggestions...")
	resp, err = client.Get("/api/v1/suggestions")
	if err != nil {
		t.Fatalf("Failed to get suggestions: %v", err)
	}
	suggestions, err := ParseResponse[suggestionListResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse suggestions: %v", err)
	}

	var ruleID string
	for _, s := range suggestions.Suggestions {
		if s.RelationshipID == rel.ID {
			ruleID = s.Reason
			break
		}
	}
	if ruleID == "" {
		t.Fatalf("Expected a suggestion for %s, got %+v", rel.ID, suggestions.Suggestions)
	}
	if ruleID != "high_drift" {
		t.Fatalf("Expected high_drift after 30 days at close tier, got %s", ruleID)
	}

	// Step 3: Promote the suggestion to a durable insight
	t.Log("Promoting suggestion...")
	resp, err = client.Post("/api/v1/suggestions/promote", map[string]any{
		"rule_id":         ruleID,
		"relationship_id": rel.ID,
	})
	if err != nil {
		t.Fatalf("Failed to promote suggestion: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 promoting suggestion, got %d", resp.StatusCode)
	}
	insight, err := ParseResponse[insightResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse insight: %v", err)
	}
	if insight.Status != "unseen" {
		t.Fatalf("Expected unseen insight, got %s", insight.Status)
	}

	// Step 4: The consumer UI marks it seen
	resp, err = client.Patch("/api/v1/insights/"+insight.ID+"/seen", nil)
	if err != nil {
		t.Fatalf("Failed to mark insight seen: %v", err)
	}
	seen, err := ParseResponse[insightResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse seen insight: %v", err)
	}
	if seen.Status != "seen" {
		t.Fatalf("Expected seen insight, got %s", seen.Status)
	}

	// Step 5: Addressing the drift invalidates the insight on the next sweep
	t.Log("Logging a fresh interaction...")
	resp, err = client.Post("/api/v1/events", map[string]any{
		"relationship_ids": []string{rel.ID},
		"category":         "hangout",
		"status":           "completed",
	})
	if err != nil {
		t.Fatalf("Failed to create fresh event: %v", err)
	}
	resp.Body.Close()

	t.Log("Reconciling insights...")
	resp, err = client.Post("/api/v1/insights/reconcile", nil)
	if err != nil {
		t.Fatalf("Failed to reconcile: %v", err)
	}
	result, err := ParseResponse[reconcileResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse reconcile result: %v", err)
	}
	if result.Invalidated < 1 {
		t.Fatalf("Expected at least one invalidation, got %+v", result)
	}

	resp, err = client.Get("/api/v1/insights?status=invalidated")
	if err != nil {
		t.Fatalf("Failed to list insights: %v", err)
	}
	invalidated, err := ParseResponse[[]insightResponse](resp)
	if err != nil {
		t.Fatalf("Failed to parse insights: %v", err)
	}
	found := false
	for _, i := range invalidated {
		if i.ID == insight.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Insight %s missing from invalidated list", insight.ID)
	}

	// Step 6: Both lifecycle transitions were published to the bus
	t.Log("Consuming lifecycle events...")
	groupID := fmt.Sprintf("fern-e2e-%d", time.Now().UnixNano())
	messages, err := kafkaHelper.ConsumeMessagesAfter(ctx, cfg.LifecycleTopic, groupID, 20*time.Second, 10, testStart)
	if err != nil {
		t.Fatalf("Failed to consume lifecycle events: %v", err)
	}

	types := map[string]bool{}
	for _, msg := range messages {
		var event struct {
			EventType string `json:"event_type"`
			InsightID string `json:"insight_id"`
		}
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			continue
		}
		if event.InsightID == insight.ID {
			types[event.EventType] = true
		}
	}
	if !types["insight.promoted"] || !types["insight.invalidated"] {
		t.Fatalf("Expected promoted and invalidated lifecycle events, got %v", types)
	}
}
