package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRecord(t *testing.T) {
	rec := NewRecord()

	if rec.RetryCount() != 0 {
		t.Errorf("expected retry_count 0, got %d", rec.RetryCount())
	}
	if logs := rec.Logs(); len(logs) != 0 {
		t.Errorf("expected empty logs, got %v", logs)
	}
	if rec.Status() != "" {
		t.Errorf("expected empty status, got %q", rec.Status())
	}
}

func TestRecord_AppendLogAndStatus(t *testing.T) {
	rec := NewRecord()
	rec.SetStatus("Designing DB schema")
	rec.AppendLog("first")
	rec.AppendLog("second")

	if rec.Status() != "Designing DB schema" {
		t.Errorf("unexpected status %q", rec.Status())
	}
	if diff := cmp.Diff([]string{"first", "second"}, rec.Logs()); diff != "" {
		t.Errorf("logs mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_LogsReturnsCopy(t *testing.T) {
	rec := NewRecord()
	rec.AppendLog("a")

	logs := rec.Logs()
	logs[0] = "mutated"

	if rec.Logs()[0] != "a" {
		t.Error("Logs() must not expose the underlying slice")
	}
}

func TestRecord_IncrementRetry(t *testing.T) {
	rec := NewRecord()

	if n := rec.IncrementRetry(); n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if n := rec.IncrementRetry(); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	if rec.RetryCount() != 2 {
		t.Errorf("expected retry_count 2, got %d", rec.RetryCount())
	}
}

func TestRecord_Int_FromJSON(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"retry_count": 2, "logs": ["x", "y"]}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if rec.RetryCount() != 2 {
		t.Errorf("expected retry_count 2, got %d", rec.RetryCount())
	}
	if diff := cmp.Diff([]string{"x", "y"}, rec.Logs()); diff != "" {
		t.Errorf("logs mismatch (-want +got):\n%s", diff)
	}

	rec.AppendLog("z")
	if len(rec.Logs()) != 3 {
		t.Errorf("expected 3 logs after append, got %d", len(rec.Logs()))
	}
}

func TestRecord_Clone_IsDeep(t *testing.T) {
	rec := NewRecord()
	rec.AppendLog("one")
	rec["nested"] = map[string]any{"k": "v"}

	clone := rec.Clone()
	rec.AppendLog("two")
	rec["nested"].(map[string]any)["k"] = "changed"

	if len(clone.Logs()) != 1 {
		t.Errorf("clone logs should stay at 1 entry, got %d", len(clone.Logs()))
	}
	if clone["nested"].(map[string]any)["k"] != "v" {
		t.Error("clone nested map should not see later changes")
	}
}

func TestRecord_Merge_KeepsMissingKeys(t *testing.T) {
	rec := Record{FieldPlan: "plan", FieldStatus: "old"}
	rec.Merge(Record{FieldStatus: "new"})

	if rec.String(FieldPlan) != "plan" {
		t.Error("merge must not remove keys absent from the update")
	}
	if rec.Status() != "new" {
		t.Errorf("expected status new, got %q", rec.Status())
	}
}

func TestRecord_Diff(t *testing.T) {
	prev := Record{FieldStatus: "a", FieldLogs: []string{"1"}, FieldPlan: "p"}
	next := Record{FieldStatus: "b", FieldLogs: []string{"1", "2"}, FieldPlan: "p", FieldDBSchema: "s"}

	got := next.Diff(prev)
	want := []string{FieldDBSchema, FieldLogs, FieldStatus}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_Diff_IgnoresJSONSliceType(t *testing.T) {
	prev := Record{FieldLogs: []any{"1"}}
	next := Record{FieldLogs: []string{"1"}}

	if got := next.Diff(prev); len(got) != 0 {
		t.Errorf("expected no changes, got %v", got)
	}
}

func TestRecord_LogsExtend(t *testing.T) {
	tests := []struct {
		name string
		prev []string
		next []string
		want bool
	}{
		{"appended", []string{"a"}, []string{"a", "b"}, true},
		{"from empty", nil, []string{"a"}, true},
		{"unchanged", []string{"a"}, []string{"a"}, false},
		{"rewritten", []string{"a"}, []string{"x", "b"}, false},
		{"trimmed", []string{"a", "b"}, []string{"b"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := Record{FieldLogs: tt.prev}
			next := Record{FieldLogs: tt.next}
			if got := next.LogsExtend(prev); got != tt.want {
				t.Errorf("LogsExtend() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRun_Lifecycle(t *testing.T) {
	run := NewRun("simple form")

	if run.Status != RunStatusPending {
		t.Errorf("expected PENDING, got %s", run.Status)
	}

	run.MarkRunning()
	if run.StartedAt == nil {
		t.Error("StartedAt should be set")
	}

	final := NewRecord()
	final[FieldRetryCount] = 2
	final[FieldOutcome] = string(OutcomeDeployed)
	run.MarkSucceeded(final)

	if !run.IsFinished() {
		t.Error("run should be finished")
	}
	if run.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", run.RetryCount)
	}
	if run.Outcome != OutcomeDeployed {
		t.Errorf("expected outcome deployed, got %s", run.Outcome)
	}
}
