package taskstate

import (
	"testing"
	"time"

	"github.com/postfiat/taskengine/pkg/database"
)

func memoAt(t time.Time, ledgerIndex int64, hash, memoType, memoData string) database.DecodedMemo {
	return database.DecodedMemo{
		Hash:        hash,
		UserAccount: "rUSER",
		Datetime:    t,
		LedgerIndex: ledgerIndex,
		MemoType:    memoType,
		MemoData:    memoData,
	}
}

func TestIsTaskID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"2025-01-01_10:00__AA00", true},
		{"2025-01-01_10:00", true},
		{"2025-01-01_10:00__aa00", false},
		{"2025-01-01_10:00__AA000", false},
		{"HANDSHAKE", false},
		{"INITIATION_REWARD", false},
		{"not a task", false},
	}
	for _, tt := range tests {
		if got := IsTaskID(tt.id); got != tt.want {
			t.Errorf("IsTaskID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestClassifyMemoData(t *testing.T) {
	tests := []struct {
		data string
		want TaskType
	}{
		{"REQUEST_POST_FIAT ___ build a report", TaskRequest},
		{"PROPOSED PF ___ Write report outline .. 60", TaskProposal},
		{"ACCEPTANCE REASON ___ on it", TaskAcceptance},
		{"REFUSAL REASON ___ too busy", TaskRefusal},
		{"COMPLETION JUSTIFICATION ___ did X", TaskOutput},
		{"VERIFICATION PROMPT ___ show me X", TaskVerificationPrompt},
		{"VERIFICATION RESPONSE ___ here is X", TaskVerificationResponse},
		{"REWARD RESPONSE __ good", TaskReward},
		{"some chatter .. 10", TaskProposal}, // bare separator fallback
		{"free form memo", TaskUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyMemoData(tt.data); got != tt.want {
			t.Errorf("ClassifyMemoData(%q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func TestClassifyTaskLifecycle(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	id := "2025-01-01_10:00__AA00"

	memos := []database.DecodedMemo{
		memoAt(base, 1, "H1", id, "REQUEST_POST_FIAT ___ build a report"),
	}
	task := ClassifyTask(id, memos)
	if task.State != TaskRequest {
		t.Fatalf("state after request = %v, want %v", task.State, TaskRequest)
	}

	memos = append(memos, memoAt(base.Add(time.Minute), 2, "H2", id, "PROPOSED PF ___ Write report outline .. 60"))
	task = ClassifyTask(id, memos)
	if task.State != TaskProposal {
		t.Fatalf("state after proposal = %v, want %v", task.State, TaskProposal)
	}
	if task.ProposedReward() != 60 {
		t.Fatalf("ProposedReward = %d, want 60", task.ProposedReward())
	}

	memos = append(memos, memoAt(base.Add(2*time.Minute), 3, "H3", id, "ACCEPTANCE REASON ___ on it"))
	task = ClassifyTask(id, memos)
	if task.State != TaskAcceptance {
		t.Fatalf("state after acceptance = %v, want %v", task.State, TaskAcceptance)
	}

	memos = append(memos, memoAt(base.Add(3*time.Minute), 4, "H4", id, "COMPLETION JUSTIFICATION ___ did X"))
	memos = append(memos, memoAt(base.Add(4*time.Minute), 5, "H5", id, "VERIFICATION PROMPT ___ show me X"))
	memos = append(memos, memoAt(base.Add(5*time.Minute), 6, "H6", id, "VERIFICATION RESPONSE ___ here is X"))
	task = ClassifyTask(id, memos)
	if task.State != TaskVerificationResponse {
		t.Fatalf("state after verification response = %v, want %v", task.State, TaskVerificationResponse)
	}

	memos = append(memos, memoAt(base.Add(6*time.Minute), 7, "H7", id, "REWARD RESPONSE __ good"))
	task = ClassifyTask(id, memos)
	if task.State != TaskReward {
		t.Fatalf("state after reward = %v, want %v", task.State, TaskReward)
	}
}

func TestRewardIsTerminal(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	id := "2025-01-01_10:00"

	memos := []database.DecodedMemo{
		memoAt(base, 1, "H1", id, "PROPOSED PF ___ task .. 50"),
		memoAt(base.Add(time.Minute), 2, "H2", id, "REWARD RESPONSE __ done"),
		memoAt(base.Add(2*time.Minute), 3, "H3", id, "ACCEPTANCE REASON ___ late acceptance"),
	}
	task := ClassifyTask(id, memos)
	if task.State != TaskReward {
		t.Fatalf("task regressed after reward: state = %v", task.State)
	}
}

func TestTieBreakByLedgerIndexThenHash(t *testing.T) {
	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	id := "2025-01-01_10:00"

	memos := []database.DecodedMemo{
		memoAt(ts, 7, "BB", id, "VERIFICATION RESPONSE ___ second"),
		memoAt(ts, 5, "ZZ", id, "ACCEPTANCE REASON ___ first"),
	}
	task := ClassifyTask(id, memos)
	if task.State != TaskVerificationResponse {
		t.Fatalf("tie-break by ledger_index failed: state = %v", task.State)
	}

	memos = []database.DecodedMemo{
		memoAt(ts, 5, "AA", id, "ACCEPTANCE REASON ___ lower hash"),
		memoAt(ts, 5, "BB", id, "COMPLETION JUSTIFICATION ___ higher hash"),
	}
	task = ClassifyTask(id, memos)
	if task.State != TaskOutput {
		t.Fatalf("tie-break by hash failed: state = %v", task.State)
	}
}

func TestBuildTasksIgnoresSystemMemoTypes(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	history := []database.DecodedMemo{
		memoAt(base, 1, "H1", "2025-01-01_10:00__AA00", "REQUEST_POST_FIAT ___ build"),
		memoAt(base, 2, "H2", "HANDSHAKE", "abcd"),
		memoAt(base, 3, "H3", "INITIATION_RITE", "I will ship daily"),
	}
	tasks := BuildTasks(history)
	if len(tasks) != 1 {
		t.Fatalf("BuildTasks grouped %d tasks, want 1", len(tasks))
	}
	if _, ok := tasks["2025-01-01_10:00__AA00"]; !ok {
		t.Fatalf("expected the task id group to exist")
	}
}

func TestDerivedViews(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	history := []database.DecodedMemo{
		memoAt(base, 1, "H1", "2025-01-01_10:00__AA01", "PROPOSED PF ___ a .. 10"),
		memoAt(base, 2, "H2", "2025-01-01_10:00__AA02", "PROPOSED PF ___ b .. 20"),
		memoAt(base.Add(time.Minute), 3, "H3", "2025-01-01_10:00__AA02", "ACCEPTANCE REASON ___ ok"),
		memoAt(base, 4, "H4", "2025-01-01_10:00__AA03", "PROPOSED PF ___ c .. 30"),
		memoAt(base.Add(time.Minute), 5, "H5", "2025-01-01_10:00__AA03", "VERIFICATION PROMPT ___ show"),
	}
	tasks := BuildTasks(history)

	if got := len(PendingProposals(tasks)); got != 1 {
		t.Errorf("PendingProposals = %d, want 1", got)
	}
	if got := len(AcceptedProposals(tasks)); got != 1 {
		t.Errorf("AcceptedProposals = %d, want 1", got)
	}
	if got := len(VerificationProposals(tasks)); got != 1 {
		t.Errorf("VerificationProposals = %d, want 1", got)
	}
	if got := len(RefuseableProposals(tasks)); got != 3 {
		t.Errorf("RefuseableProposals = %d, want 3", got)
	}
}
