package main

import (
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tkoide/kwprobe/internal/analysis"
	"github.com/tkoide/kwprobe/internal/config"
	"github.com/tkoide/kwprobe/internal/db"
	"github.com/tkoide/kwprobe/internal/keyword"
	"github.com/tkoide/kwprobe/internal/session"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// runCLI executes the CLI with stdout captured.
func runCLI(t *testing.T, database *sql.DB, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(database, config.DefaultConfig(), zerolog.Nop())

	oldStdout := os.Stdout
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = pw

	runErr := app.Run(append([]string{"kwprobe"}, args...))

	pw.Close()
	os.Stdout = oldStdout
	out, _ := io.ReadAll(pr)
	return string(out), runErr
}

func seedSession(t *testing.T, database *sql.DB, id int64, kw string) {
	t.Helper()
	resp := "an answer mentioning " + kw
	s := session.Session{
		ID:        id,
		Timestamp: "6/1/2024, 3:04:05 PM",
		Keyword:   kw,
		Prompts:   []analysis.PromptSpec{{ID: "p1", Value: "a prompt"}},
		Results: []analysis.AnalysisResult{{
			PromptNumber: 1,
			Prompt:       "a prompt",
			SummaryFound: true,
			SummaryText:  "Found in 1/1 iterations",
			Iterations: []analysis.IterationRecord{{
				IterationNumber: 1,
				Response:        &resp,
				Status:          keyword.StatusFound,
			}},
		}},
		Iterations: 1,
	}
	if err := session.AppendSession(database, s); err != nil {
		t.Fatalf("AppendSession failed: %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	database := setupTestDB(t)
	seedSession(t, database, 1001, "solar farm")
	seedSession(t, database, 1002, "wind farm")

	out, err := runCLI(t, database, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("unmarshal output: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0]["keyword"] != "wind farm" {
		t.Errorf("entries[0].keyword = %v", entries[0]["keyword"])
	}
}

func TestHistoryCommand_Limit(t *testing.T) {
	database := setupTestDB(t)
	for id := int64(1); id <= 5; id++ {
		seedSession(t, database, id, "kw")
	}

	out, err := runCLI(t, database, "history", "--limit", "2")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len = %d, want 2", len(entries))
	}
}

func TestSessionsShowAndDelete(t *testing.T) {
	database := setupTestDB(t)
	seedSession(t, database, 1001, "solar farm")
	
	out, err := runCLI(t, database, "sessions", "show", "1001")
	if err != nil {
		t.Fatalf("sessions show failed: %v", err)
	}
	if !strings.Contains(out, `"keyword": "solar farm"`) {
		t.Errorf("show output = %s", out)
	}

	if _, err := runCLI(t, database, "sessions", "delete", "1001"); err != nil {
		t.Fatalf("sessions delete failed: %v", err)
	}

	_, err = runCLI(t, database, "sessions", "show", "1001")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("show after delete error = %v", err)
	}
}

func TestSessionsShow_InvalidID(t *testing.T) {
	database := setupTestDB(t)

	_, err := runCLI(t, database, "sessions", "show", "abc")
	if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("error = %v", err)
	}
}

func TestPersonasLifecycle(t *testing.T) {
	database := setupTestDB(t)
	
	out, err := runCLI(t, database, "personas", "list")
	if err != nil {
		t.Fatalf("personas list failed: %v", err)
	}
	var personas []session.Persona
	if err := json.Unmarshal([]byte(out), &personas); err != nil {
		t.Fatalf("unmarshal personas: %v", err)
	}
	if len(personas) != 4 {
		t.Fatalf("defaults = %d, want 4", len(personas))
	}

	out, err = runCLI(t, database, "personas", "save", "--name", "Marta", "--content", "runs a bakery")
	if err != nil {
		t.Fatalf("personas save failed: %v", err)
	}
	var saved session.Persona
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("unmarshal saved persona: %v", err)
	}

	if _, err := runCLI(t, database, "personas", "delete", saved.ID); err != nil {
		t.Fatalf("personas delete failed: %v", err)
	}
	_, err = runCLI(t, database, "personas", "delete", saved.ID)
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("repeat delete error = %v", err)
	}
}

func TestReportCommand_Single(t *testing.T) {
	database := setupTestDB(t)
	seedSession(t, database, 1001, "solar farm")

	out, err := runCLI(t, database, "report", "1001")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(out, "# Keyword Analysis Report") {
		t.Errorf("report output = %s", out)
	}
}

func TestReportCommand_Multi(t *testing.T) {
	database := setupTestDB(t)
	seedSession(t, database, 1001, "solar farm")
	seedSession(t, database, 1002, "solar farm")
	seedSession(t, database, 1003, "wind farm")
	
	out, err := runCLI(t, database, "report", "1001", "1002")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(out, "# Multi-Session Comparison Report") {
		t.Errorf("report output = %s", out)
	}

	_, err = runCLI(t, database, "report", "1001", "1003")
	if err == nil || !strings.Contains(err.Error(), "KEYWORD_MISMATCH") {
		t.Errorf("mismatch error = %v", err)
	}
}

func TestReportCommand_Records(t *testing.T) {
	database := setupTestDB(t)
	seedSession(t, database, 1001, "solar farm")
	seedSession(t, database, 1002, "solar farm")

	if _, err := runCLI(t, database, "report", "1001", "1002"); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	out, err := runCLI(t, database, "report", "list")
	if err != nil {
		t.Fatalf("report list failed: %v", err)
	}
	var records []session.MultiAnalysis
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("unmarshal records: %v", err)
	}
	if len(records) != 1 || records[0].Keyword != "solar farm" {
		t.Fatalf("records = %+v", records)
	}

	id := strconv.FormatInt(records[0].ID, 10)
	out, err = runCLI(t, database, "report", "show", id)
	if err != nil {
		t.Fatalf("report show failed: %v", err)
	}
	if !strings.Contains(out, "# Multi-Session Comparison Report") {
		t.Errorf("show output = %s", out)
	}

	if _, err := runCLI(t, database, "report", "delete", id); err != nil {
		t.Fatalf("report delete failed: %v", err)
	}
	_, err = runCLI(t, database, "report", "show", id)
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("show after delete error = %v", err)
	}
}

func TestUsageCommand(t *testing.T) {
	database := setupTestDB(t)

	out, err := runCLI(t, database, "usage")
	if err != nil {
		t.Fatalf("usage failed: %v", err)
	}
	var usage struct {
		Used      int `json:"used"`
		Remaining int `json:"remaining"`
		Limit     int `json:"limit"`
	}
	if err := json.Unmarshal([]byte(out), &usage); err != nil {
		t.Fatalf("unmarshal usage: %v", err)
	}
	if usage.Used != 0 || usage.Remaining != usage.Limit {
		t.Errorf("usage = %+v", usage)
	}
}

func TestAnalyzeCommand_MissingAPIKey(t *testing.T) {
	database := setupTestDB(t)
	t.Setenv("GEMINI_API_KEY", "")

	_, err := runCLI(t, database, "analyze", "-k", "solar", "-p", "a prompt")
	if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("error = %v", err)
	}
}

func TestIsCLIMode(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	cases := []struct {
		args []string
		want bool
	}{
		{[]string{"kwprobe"}, false},
		{[]string{"kwprobe", "analyze"}, true},
		{[]string{"kwprobe", "history"}, true},
		{[]string{"kwprobe", "--help"}, true},
		{[]string{"kwprobe", "not-a-command"}, false},
	}
	for _, tc := range cases {
		os.Args = tc.args
		if got := isCLIMode(); got != tc.want {
			t.Errorf("isCLIMode(%v) = %v, want %v", tc.args, got, tc.want)
		}
	}
}
