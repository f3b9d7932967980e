//go:build ignore

// Seed script for manual testing of the coordinator and the CLI.
// Boots nothing itself: point it at a running coordinator and it fills
// the registry with a believable maintenance window.
//
// Run with: go run scripts/seed_demo.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

var (
	baseURL = envOr("SWITCHYARD_SERVER_URL", "http://localhost:12214")
	token   string
	client  = &http.Client{Timeout: 10 * time.Second}
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func post(path string, body, out any) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal %s: %v", path, err)
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr datatypes.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&apiErr)
		log.Fatalf("POST %s: status %d: %s", path, resp.StatusCode, apiErr.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", path, err)
		}
	}
}

func patchStatus(id uint64, status string) {
	payload, _ := json.Marshal(datatypes.UpdateOperationRequest{Status: &status})
	req, err := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/api/v1/operations/%d", baseURL, id), bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("PATCH operation %d: %v", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr datatypes.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&apiErr)
		log.Fatalf("PATCH operation %d -> %s: status %d: %s", id, status, resp.StatusCode, apiErr.Error)
	}
}

func createOperation(req datatypes.CreateOperationRequest) uint64 {
	var resp datatypes.CreateOperationResponse
	post("/api/v1/operations", req, &resp)
	fmt.Printf("  ✓ operation %d: %s\n", resp.ID, req.Title)
	return resp.ID
}

func main() {
	fmt.Printf("Seeding demo data into %s\n", baseURL)

	// 1. Authenticate
	fmt.Println("\nStep 1: Authenticating as demo")
	var auth datatypes.AuthResponse
	post("/api/v1/auth", datatypes.AuthRequest{Username: "demo"}, &auth)
	token = auth.Token
	fmt.Println("  ✓ token issued")

	// 2. Components
	fmt.Println("\nStep 2: Registering components")
	for _, c := range []datatypes.CreateComponentRequest{
		{Name: "payments-db", Description: "Primary payments cluster", Owners: []string{"casey"}},
		{Name: "payments-api", Description: "Public payments API", Owners: []string{"rowan"}},
		{Name: "search-cluster", Description: "Product search backend", Owners: []string{"demo"}},
		{Name: "cdn-edge", Description: "Edge cache fleet", Owners: []string{"demo", "casey"}},
	} {
		post("/api/v1/components", c, nil)
		fmt.Printf("  ✓ component %s\n", c.Name)
	}

	// 3. Tags
	fmt.Println("\nStep 3: Registering tags")
	for _, tag := range []datatypes.CreateTagRequest{
		{Name: "db-maintenance", Description: "Database maintenance window"},
		{Name: "networking", Description: "Network and edge work"},
		{Name: "q3-freeze", Description: "Changes racing the Q3 freeze"},
	} {
		post("/api/v1/tags", tag, nil)
		fmt.Printf("  ✓ tag %s\n", tag.Name)
	}

	// 4. A window with every lifecycle state represented
	fmt.Println("\nStep 4: Planning operations")
	certs := createOperation(datatypes.CreateOperationRequest{
		Title:      "Rotate payments-db leaf certificates",
		Purpose:    "Current certificates expire at the end of the month.",
		URL:        "https://change.example.com/CHG-1001",
		Components: []string{"payments-db"},
		Locks:      []string{"payments-db"},
		Tags:       []string{"db-maintenance"},
	})
	upgrade := createOperation(datatypes.CreateOperationRequest{
		Title:       "Upgrade payments-db to 16.4",
		Purpose:     "Pick up the upstream fix for the replication stall.",
		URL:         "https://change.example.com/CHG-1002",
		Components:  []string{"payments-db", "payments-api"},
		Locks:       []string{"payments-db"},
		Tags:        []string{"db-maintenance", "q3-freeze"},
		DependsOn:   []uint64{certs},
		Annotations: map[string]string{"ticket": "CHG-1002", "window": "sat-02:00"},
	})
	createOperation(datatypes.CreateOperationRequest{
		Title:      "Rebuild the search indexes",
		Purpose:    "Index bloat is slowing down settlement queries.",
		URL:        "https://change.example.com/CHG-1003",
		Components: []string{"search-cluster"},
		Locks:      []string{"search-cluster"},
		DependsOn:  []uint64{upgrade},
	})
	drain := createOperation(datatypes.CreateOperationRequest{
		Title:      "Drain cdn-edge rack 4 for card replacement",
		Purpose:    "Two line cards are throwing correctable errors.",
		URL:        "https://change.example.com/CHG-1004",
		Components: []string{"cdn-edge"},
		Locks:      []string{"cdn-edge"},
		Tags:       []string{"networking"},
	})
	createOperation(datatypes.CreateOperationRequest{
		Title:      "Audit payments-api error budgets",
		Purpose:    "Quarterly review before the freeze.",
		URL:        "https://change.example.com/CHG-1005",
		Components: []string{"payments-api"},
		Tags:       []string{"q3-freeze"},
	})

	// 5. Advance the lifecycle so every state shows up in the UI
	fmt.Println("\nStep 5: Advancing lifecycles")
	patchStatus(certs, "in_progress")
	patchStatus(certs, "completed")
	fmt.Printf("  ✓ operation %d completed\n", certs)
	patchStatus(upgrade, "in_progress")
	fmt.Printf("  ✓ operation %d in progress\n", upgrade)
	patchStatus(drain, "in_progress")
	patchStatus(drain, "paused")
	fmt.Printf("  ✓ operation %d paused\n", drain)

	// 6. Subscriptions for the demo user
	fmt.Println("\nStep 6: Subscribing to the window")
	db := "payments-db"
	post("/api/v1/subscriptions", datatypes.SubscribeRequest{Component: &db}, nil)
	maint := "db-maintenance"
	post("/api/v1/subscriptions", datatypes.SubscribeRequest{Tag: &maint}, nil)
	fmt.Println("  ✓ subscribed to payments-db and db-maintenance")

	fmt.Println("\nDone. Try: switchyard operation list, or switchyard watch")
}
