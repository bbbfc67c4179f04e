package taskstate

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/postfiat/taskengine/pkg/database"
)

// classifyOrder is the precedence used when memo_data could match more
// than one sentinel. The bare " .. " proposal separator is deliberately
// last: it only decides the type of a memo no explicit sentinel claimed.
var classifyOrder = []struct {
	taskType TaskType
	patterns []string
}{
	{TaskProposal, []string{ProposalSentinel}},
	{TaskRequest, []string{RequestSentinel}},
	{TaskAcceptance, []string{AcceptanceSentinel}},
	{TaskRefusal, []string{RefusalSentinel}},
	{TaskOutput, []string{OutputSentinel}},
	{TaskVerificationPrompt, []string{VerificationPromptSentinel}},
	{TaskVerificationResponse, []string{VerificationResponseSentinel}},
	{TaskReward, []string{RewardSentinel}},
	{TaskProposal, []string{ProposalSeparator}},
}

// ClassifyMemoData returns the task stage memo_data belongs to, or
// TaskUnknown if it matches no known sentinel.
func ClassifyMemoData(memoData string) TaskType {
	for _, entry := range classifyOrder {
		for _, p := range entry.patterns {
			if strings.Contains(memoData, p) {
				return entry.taskType
			}
		}
	}
	return TaskUnknown
}

// stateChangeTypes are the stages that move a task out of PROPOSAL state.
// A task whose memo history contains none of these is in PROPOSAL state
// (or REQUEST state, if no proposal was ever sent).
var stateChangeTypes = map[TaskType]bool{
	TaskAcceptance:           true,
	TaskRefusal:              true,
	TaskOutput:               true,
	TaskVerificationPrompt:   true,
	TaskVerificationResponse: true,
	TaskReward:               true,
}

// Task is the classified view of every memo sharing one task id.
type Task struct {
	ID          string
	UserAccount string
	State       TaskType

	// Proposal is the PROPOSAL memo's memo_data, if one exists.
	Proposal string

	// Request is the REQUEST_POST_FIAT memo's memo_data, if one exists.
	Request string

	// LatestData is the memo_data of the memo that defines State.
	LatestData string

	// Memos is the full memo sequence, in ledger order.
	Memos []database.DecodedMemo
}

// LatestMemo returns the last memo in ledger order, or nil for an
// empty task.
func (t *Task) LatestMemo() *database.DecodedMemo {
	if len(t.Memos) == 0 {
		return nil
	}
	return &t.Memos[len(t.Memos)-1]
}

var proposedRewardPattern = regexp.MustCompile(`\.\.\s*(\d+)\s*$`)

// ProposedReward parses the integer value after the final " .. " of the
// task's proposal text, returning 0 if no proposal or no value exists.
func (t *Task) ProposedReward() int {
	m := proposedRewardPattern.FindStringSubmatch(strings.TrimSpace(t.Proposal))
	if m == nil {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return v
}

// sortLedgerOrder sorts memos by (datetime, ledger_index, hash), the
// total order the ledger provides.
func sortLedgerOrder(memos []database.DecodedMemo) {
	sort.SliceStable(memos, func(i, j int) bool {
		if !memos[i].Datetime.Equal(memos[j].Datetime) {
			return memos[i].Datetime.Before(memos[j].Datetime)
		}
		if memos[i].LedgerIndex != memos[j].LedgerIndex {
			return memos[i].LedgerIndex < memos[j].LedgerIndex
		}
		return memos[i].Hash < memos[j].Hash
	})
}

// ClassifyTask reduces a memo sequence sharing one task id to its
// current lifecycle state. A REWARD memo is terminal: once present, the
// task classifies as REWARD no matter what arrives afterward.
func ClassifyTask(taskID string, memos []database.DecodedMemo) *Task {
	t := &Task{ID: taskID, State: TaskUnknown}
	t.Memos = make([]database.DecodedMemo, len(memos))
	copy(t.Memos, memos)
	sortLedgerOrder(t.Memos)

	rewarded := false
	var latestChange *database.DecodedMemo
	var latestChangeType TaskType

	for i := range t.Memos {
		m := &t.Memos[i]
		if t.UserAccount == "" {
			t.UserAccount = m.UserAccount
		}

		switch stage := ClassifyMemoData(m.MemoData); {
		case stage == TaskRequest && t.Request == "":
			t.Request = m.MemoData
		case stage == TaskProposal && t.Proposal == "":
			t.Proposal = m.MemoData
		case stateChangeTypes[stage]:
			if rewarded {
				// Terminal: memos after a REWARD are cached but
				// ignored for lifecycle purposes.
				continue
			}
			latestChange = m
			latestChangeType = stage
			if stage == TaskReward {
				rewarded = true
			}
		}
	}

	switch {
	case latestChange != nil:
		t.State = latestChangeType
		t.LatestData = latestChange.MemoData
	case t.Proposal != "":
		t.State = TaskProposal
		t.LatestData = t.Proposal
	case t.Request != "":
		t.State = TaskRequest
		t.LatestData = t.Request
	}

	return t
}

// BuildTasks groups a full memo history by task id and classifies each
// group. Memos whose memo_type is not a task id are ignored.
func BuildTasks(history []database.DecodedMemo) map[string]*Task {
	byID := make(map[string][]database.DecodedMemo)
	for _, m := range history {
		if !IsTaskID(m.MemoType) {
			continue
		}
		byID[m.MemoType] = append(byID[m.MemoType], m)
	}

	tasks := make(map[string]*Task, len(byID))
	for id, memos := range byID {
		tasks[id] = ClassifyTask(id, memos)
	}
	return tasks
}

// TasksInState returns every task currently in one of the given states,
// ordered by task id for deterministic scans.
func TasksInState(tasks map[string]*Task, states ...TaskType) []*Task {
	want := make(map[TaskType]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	var out []*Task
	for _, t := range tasks {
		if want[t.State] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingProposals returns tasks sitting in PROPOSAL state with no user
// response yet.
func PendingProposals(tasks map[string]*Task) []*Task {
	return TasksInState(tasks, TaskProposal)
}

// AcceptedProposals returns tasks the user has accepted.
func AcceptedProposals(tasks map[string]*Task) []*Task {
	return TasksInState(tasks, TaskAcceptance)
}

// RefuseableProposals returns tasks the user could still refuse:
// proposed, accepted, or awaiting a verification response.
func RefuseableProposals(tasks map[string]*Task) []*Task {
	return TasksInState(tasks, TaskProposal, TaskAcceptance, TaskVerificationPrompt)
}

// VerificationProposals returns tasks awaiting the user's verification
// response.
func VerificationProposals(tasks map[string]*Task) []*Task {
	return TasksInState(tasks, TaskVerificationPrompt)
}

// RefusedProposals returns terminally refused tasks.
func RefusedProposals(tasks map[string]*Task) []*Task {
	return TasksInState(tasks, TaskRefusal)
}

// RewardedProposals returns terminally rewarded tasks.
func RewardedProposals(tasks map[string]*Task) []*Task {
	return TasksInState(tasks, TaskReward)
}
