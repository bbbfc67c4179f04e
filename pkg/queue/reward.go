// reward.go implements the reward queue: for every task
// whose latest memo is a VERIFICATION RESPONSE, judge the evidence and
// send the final clamped reward as a REWARD RESPONSE memo.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/submitter"
	"github.com/postfiat/taskengine/pkg/taskstate"
)

func (o *Orchestrator) runRewardQueue(ctx context.Context) error {
	history, err := o.nodeHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load node history: %w", err)
	}
	tasks := taskstate.BuildTasks(history)

	for _, task := range taskstate.TasksInState(tasks, taskstate.TaskVerificationResponse) {
		latest := task.LatestMemo()
		if latest == nil || o.isProcessed(ctx, latest.Hash) {
			continue
		}
		if err := o.rewardTask(ctx, task, history); err != nil {
			o.logger.Printf("reward for task %s failed: %v", task.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) rewardTask(ctx context.Context, task *taskstate.Task, history []database.DecodedMemo) error {
	verificationPrompt := ""
	if m := latestMemoOfStage(task, taskstate.TaskVerificationPrompt); m != nil {
		verificationPrompt = m.MemoData
	}
	verificationResponse := task.LatestData

	proposedReward := task.ProposedReward()
	if proposedReward <= 0 || proposedReward > o.cfg.MaxRewardPFT {
		proposedReward = o.cfg.MaxRewardPFT
	}

	docText := o.fetchDocText(ctx, task.UserAccount, history)
	rewardHistory := o.rewardHistoryText(history, task.UserAccount)

	response, err := o.completer.CompleteSync(ctx, o.llmArgs(
		rewardJudgeSystemPrompt,
		rewardJudgeUserPrompt(task.Proposal, verificationPrompt, verificationResponse,
			docText, rewardHistory, proposedReward),
	))
	if err != nil {
		return fmt.Errorf("judge call failed: %w", err)
	}

	reward, ok := extractPipeInt(response, "Total PFT Rewarded")
	if !ok {
		reward = o.cfg.MinRewardPFT
	}
	summary, ok := extractPipeField(response, "Summary Judgment")
	if !ok {
		summary = "Reward issued"
	}

	reward = o.clampReward(reward, proposedReward, task.UserAccount, history)
	if reward < o.cfg.MinRewardPFT {
		// The user's daily budget is exhausted; leave the task for a
		// later cycle rather than under- or over-paying.
		return fmt.Errorf("daily reward budget exhausted for %s", task.UserAccount)
	}

	memoData := taskstate.RewardSentinel + " " + summary
	results, err := o.sender.SendMemo(ctx, o.wallets[o.node.NodeAddress], task.UserAccount,
		task.ID, o.node.NodeName, memoData, float64(reward), submitter.SendFlags{})
	if err != nil {
		return fmt.Errorf("failed to send reward: %w", err)
	}

	err = o.confirmSend(ctx, "reward", func(history []database.DecodedMemo) bool {
		for _, m := range history {
			if m.MemoType == task.ID && o.sentByNode(m, task.UserAccount) &&
				taskstate.ClassifyMemoData(m.MemoData) == taskstate.TaskReward {
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}

	if o.metrics != nil {
		o.metrics.RewardsPFT.Add(float64(reward))
	}
	o.record(ctx, task.LatestMemo().Hash, "reward", lastResponseHash(results),
		fmt.Sprintf("rewarded %d PFT", reward))
	return nil
}

// clampReward applies the reward policy:
// MIN <= reward <= min(MAX, proposed, remaining daily budget).
func (o *Orchestrator) clampReward(reward, proposedReward int, userAccount string, history []database.DecodedMemo) int {
	ceiling := o.cfg.MaxRewardPFT
	if proposedReward > 0 && proposedReward < ceiling {
		ceiling = proposedReward
	}
	if remaining := o.remainingDailyBudget(userAccount, history); remaining < ceiling {
		ceiling = remaining
	}

	if reward > ceiling {
		reward = ceiling
	}
	if reward < o.cfg.MinRewardPFT {
		reward = o.cfg.MinRewardPFT
	}
	if ceiling < o.cfg.MinRewardPFT {
		return 0
	}
	return reward
}

// remainingDailyBudget computes the user's unspent share of the per-day
// reward ceiling over the trailing 24 hours.
func (o *Orchestrator) remainingDailyBudget(userAccount string, history []database.DecodedMemo) int {
	cutoff := o.now().Add(-24 * time.Hour)

	spent := 0.0
	for _, m := range history {
		if !o.sentByNode(m, userAccount) || m.Datetime.Before(cutoff) {
			continue
		}
		if taskstate.ClassifyMemoData(m.MemoData) == taskstate.TaskReward ||
			m.MemoType == taskstate.MemoTypeInitiationReward {
			spent += m.PFTAbsoluteAmount
		}
	}

	remaining := o.cfg.DailyRewardCeilingPFT - int(spent)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// rewardHistoryText summarizes the user's rewards over the configured
// window for the judging prompt.
func (o *Orchestrator) rewardHistoryText(history []database.DecodedMemo, userAccount string) string {
	cutoff := o.now().AddDate(0, 0, -o.cfg.RewardWindowDays)

	var b strings.Builder
	for _, m := range history {
		if !o.sentByNode(m, userAccount) || m.Datetime.Before(cutoff) {
			continue
		}
		if taskstate.ClassifyMemoData(m.MemoData) != taskstate.TaskReward {
			continue
		}
		fmt.Fprintf(&b, "[%s] %.0f PFT: %s\n", m.Datetime.Format("2006-01-02"), m.PFTAbsoluteAmount, m.MemoData)
	}
	if b.Len() == 0 {
		return "No rewards in the window."
	}
	return b.String()
}
