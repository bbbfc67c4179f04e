// verification.go implements the verification queue: for
// every task whose latest memo is a COMPLETION JUSTIFICATION, ask the
// LLM for a single verifying question and send it back as a
// VERIFICATION PROMPT memo.
package queue

import (
	"context"
	"fmt"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/submitter"
	"github.com/postfiat/taskengine/pkg/taskstate"
)

func (o *Orchestrator) runVerificationQueue(ctx context.Context) error {
	history, err := o.nodeHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load node history: %w", err)
	}
	tasks := taskstate.BuildTasks(history)

	for _, task := range taskstate.TasksInState(tasks, taskstate.TaskOutput) {
		latest := task.LatestMemo()
		if latest == nil || o.isProcessed(ctx, latest.Hash) {
			continue
		}
		if err := o.sendVerificationPrompt(ctx, task); err != nil {
			o.logger.Printf("verification prompt for task %s failed: %v", task.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) sendVerificationPrompt(ctx context.Context, task *taskstate.Task) error {
	response, err := o.completer.CompleteSync(ctx, o.llmArgs(
		verificationQuestionSystemPrompt,
		verificationQuestionUserPrompt(task.Proposal, task.LatestData),
	))
	if err != nil {
		return fmt.Errorf("question generation failed: %w", err)
	}

	question, ok := extractPipeField(response, "Verifying Question")
	if !ok {
		// No sane default exists for a verifying question; leave the
		// task in the queue for the next cycle.
		return fmt.Errorf("judge response carried no verifying question")
	}

	memoData := taskstate.VerificationPromptSentinel + " " + question
	results, err := o.sender.SendMemo(ctx, o.wallets[o.node.NodeAddress], task.UserAccount,
		task.ID, o.node.NodeName, memoData, 1, submitter.SendFlags{})
	if err != nil {
		return fmt.Errorf("failed to send verification prompt: %w", err)
	}

	err = o.confirmSend(ctx, "verification", func(history []database.DecodedMemo) bool {
		for _, m := range history {
			if m.MemoType == task.ID && o.sentByNode(m, task.UserAccount) &&
				taskstate.ClassifyMemoData(m.MemoData) == taskstate.TaskVerificationPrompt {
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}

	o.record(ctx, task.LatestMemo().Hash, "verification", lastResponseHash(results), question)
	return nil
}

// latestMemoOfStage returns the last memo in a task's sequence matching
// stage, or nil.
func latestMemoOfStage(task *taskstate.Task, stage taskstate.TaskType) *database.DecodedMemo {
	for i := len(task.Memos) - 1; i >= 0; i-- {
		if taskstate.ClassifyMemoData(task.Memos[i].MemoData) == stage {
			return &task.Memos[i]
		}
	}
	return nil
}
