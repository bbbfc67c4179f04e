// proposal.go implements the proposal queue: for every
// task id whose latest memo is still a REQUEST_POST_FIAT, run the
// two-phase generation (N concurrent candidates, then one selector call)
// and send the chosen task back as a PROPOSED PF memo.
package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/llm"
	"github.com/postfiat/taskengine/pkg/submitter"
	"github.com/postfiat/taskengine/pkg/taskstate"
)

// defaultCandidateCount is the number of concurrent phase-A generation
// calls per request.
const defaultCandidateCount = 3

func (o *Orchestrator) runProposalQueue(ctx context.Context) error {
	history, err := o.nodeHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load node history: %w", err)
	}
	tasks := taskstate.BuildTasks(history)

	for _, task := range taskstate.TasksInState(tasks, taskstate.TaskRequest) {
		latest := task.LatestMemo()
		if latest == nil || o.isProcessed(ctx, latest.Hash) {
			continue
		}

		if err := o.proposeTask(ctx, task, history, tasks); err != nil {
			o.logger.Printf("proposal for task %s failed: %v", task.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) proposeTask(ctx context.Context, task *taskstate.Task, history []database.DecodedMemo, tasks map[string]*taskstate.Task) error {
	userContext := o.userContext(ctx, task.UserAccount, history, tasks)
	request := strings.TrimSpace(strings.TrimPrefix(task.Request, taskstate.RequestSentinel))

	candidates, err := o.generateCandidates(ctx, userContext, request)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no usable task candidates generated")
	}

	// Phase B: one selector call over the deduplicated candidates.
	selection, err := o.completer.CompleteSync(ctx, o.llmArgs(
		taskSelectionSystemPrompt,
		taskSelectionUserPrompt(userContext, candidates),
	))
	if err != nil {
		return fmt.Errorf("selector call failed: %w", err)
	}
	chosen := candidates[parseBestOutput(selection, len(candidates))-1]

	memoData := taskstate.ProposalSentinel + " " + chosen
	results, err := o.sender.SendMemo(ctx, o.wallets[o.node.NodeAddress], task.UserAccount,
		task.ID, o.node.NodeName, memoData, 1, submitter.SendFlags{})
	if err != nil {
		return fmt.Errorf("failed to send proposal: %w", err)
	}

	err = o.confirmSend(ctx, "proposal", func(history []database.DecodedMemo) bool {
		for _, m := range history {
			if m.MemoType == task.ID && o.sentByNode(m, task.UserAccount) &&
				taskstate.ClassifyMemoData(m.MemoData) == taskstate.TaskProposal {
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}

	o.record(ctx, task.LatestMemo().Hash, "proposal", lastResponseHash(results), chosen)
	return nil
}

// generateCandidates runs phase A: defaultCandidateCount concurrent
// generation calls, collecting every well-formed candidate line across
// the responses and deduplicating while preserving order.
func (o *Orchestrator) generateCandidates(ctx context.Context, userContext, request string) ([]string, error) {
	args := o.llmArgs(taskGenerationSystemPrompt, taskGenerationUserPrompt(userContext, request))

	ids := make([]string, defaultCandidateCount)
	batch := make(map[string]llm.Args, defaultCandidateCount)
	for i := range ids {
		ids[i] = fmt.Sprintf("candidate-%d", i+1)
		batch[ids[i]] = args
	}

	responses, err := o.completer.CompleteBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("candidate generation failed: %w", err)
	}

	var lines []string
	for _, id := range ids {
		if text, ok := responses[id]; ok {
			lines = append(lines, candidateLines(text)...)
		}
	}
	return dedupe(lines), nil
}
