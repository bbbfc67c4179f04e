// context.go assembles the bounded user-context string fed to the task
// generation and reward prompts: recent task summaries per
// lifecycle state, the user's verification document text, and their
// recent long-form memos.
package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/taskstate"
)

const (
	// maxTasksPerSection caps each lifecycle section of the context.
	maxTasksPerSection = 8

	// maxLongFormMemos caps the trailing free-form memo section.
	maxLongFormMemos = 20

	// longFormThreshold is the minimum memo_data length for a memo to
	// count as long-form user writing rather than protocol traffic.
	longFormThreshold = 100

	// maxContextChars bounds the assembled context to stay under
	// provider prompt limits.
	maxContextChars = 40_000
)

// userTasks filters a task map down to one user's tasks.
func userTasks(tasks map[string]*taskstate.Task, userAccount string) map[string]*taskstate.Task {
	out := make(map[string]*taskstate.Task)
	for id, t := range tasks {
		if t.UserAccount == userAccount {
			out[id] = t
		}
	}
	return out
}

// userContext builds the context string for userAccount from the node's
// history and classified tasks. The document fetch is best-effort: on
// failure the placeholder string stands in.
func (o *Orchestrator) userContext(ctx context.Context, userAccount string, history []database.DecodedMemo, tasks map[string]*taskstate.Task) string {
	mine := userTasks(tasks, userAccount)

	var b strings.Builder
	writeTaskSection(&b, "PENDING PROPOSALS", taskstate.PendingProposals(mine))
	writeTaskSection(&b, "ACCEPTED TASKS", taskstate.AcceptedProposals(mine))
	writeTaskSection(&b, "REFUSED TASKS", taskstate.RefusedProposals(mine))
	writeTaskSection(&b, "TASKS AWAITING VERIFICATION", taskstate.VerificationProposals(mine))
	writeTaskSection(&b, "REWARDED TASKS", taskstate.RewardedProposals(mine))

	b.WriteString("== TASK VERIFICATION DOCUMENT ==\n")
	b.WriteString(o.fetchDocText(ctx, userAccount, history))
	b.WriteString("\n\n")

	b.WriteString("== RECENT USER MEMOS ==\n")
	for _, m := range longFormMemos(history, userAccount) {
		fmt.Fprintf(&b, "[%s] %s\n", m.Datetime.Format("2006-01-02"), m.MemoData)
	}

	text := b.String()
	if len(text) > maxContextChars {
		text = text[len(text)-maxContextChars:]
	}
	return text
}

func writeTaskSection(b *strings.Builder, title string, tasks []*taskstate.Task) {
	b.WriteString("== " + title + " ==\n")
	if len(tasks) > maxTasksPerSection {
		tasks = tasks[len(tasks)-maxTasksPerSection:]
	}
	for _, t := range tasks {
		fmt.Fprintf(b, "%s: %s\n", t.ID, t.LatestData)
	}
	b.WriteString("\n")
}

// fetchDocText resolves the user's latest google_doc_context_link memo
// and fetches its verification section.
func (o *Orchestrator) fetchDocText(ctx context.Context, userAccount string, history []database.DecodedMemo) string {
	link := ""
	for _, m := range history {
		if m.MemoType == taskstate.MemoTypeGoogleDocContextLink && m.Account == userAccount {
			link = strings.TrimSpace(m.MemoData)
		}
	}
	if link == "" {
		return docTextPlaceholder
	}

	text, err := o.docs.FetchVerificationText(ctx, link)
	if err != nil {
		o.logger.Printf("failed to fetch context document for %s: %v", userAccount, err)
		return docTextPlaceholder
	}
	return text
}

// longFormMemos returns the user's most recent long-form memos, oldest
// first, capped at maxLongFormMemos.
func longFormMemos(history []database.DecodedMemo, userAccount string) []database.DecodedMemo {
	var out []database.DecodedMemo
	for _, m := range history {
		if m.Account != userAccount {
			continue
		}
		if len(m.MemoData) < longFormThreshold {
			continue
		}
		out = append(out, m)
	}
	if len(out) > maxLongFormMemos {
		out = out[len(out)-maxLongFormMemos:]
	}
	return out
}
