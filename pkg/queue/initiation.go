// initiation.go implements the initiation queue: judge
// each valid INITIATION_RITE that has not yet received an
// INITIATION_REWARD, and send the graded reward back.
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

// minRiteLength is the minimum trimmed length for an initiation rite to
// reach the judge at all.
const minRiteLength = 10

// tesSuccess is the ledger's accepted-transaction result code.
const tesSuccess = "tesSUCCESS"

// initiationWork is one rite awaiting a reward.
type initiationWork struct {
	rite database.DecodedMemo
	text string
}

func (o *Orchestrator) runInitiationQueue(ctx context.Context) error {
	history, err := o.nodeHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load node history: %w", err)
	}

	for _, work := range o.scanInitiations(history) {
		if o.isProcessed(ctx, work.rite.Hash) {
			continue
		}
		if err := o.rewardInitiation(ctx, work); err != nil {
			o.logger.Printf("initiation reward for %s failed: %v", work.rite.Account, err)
		}
	}
	return nil
}

// scanInitiations returns the latest valid, unanswered rite per user.
// A user is answered once any INITIATION_REWARD from the node exists —
// or, with reinitiations enabled, once one exists dated after the rite.
func (o *Orchestrator) scanInitiations(history []database.DecodedMemo) []initiationWork {
	latestRite := make(map[string]database.DecodedMemo)
	lastReward := make(map[string]time.Time)
	rewardedEver := make(map[string]bool)
	var order []string

	for _, m := range history {
		switch m.MemoType {
		case taskstate.MemoTypeInitiationRite:
			if m.Account == o.node.NodeAddress || (m.TransactionResult != "" && m.TransactionResult != tesSuccess) {
				continue
			}
			if len(strings.TrimSpace(m.MemoData)) < minRiteLength {
				continue
			}
			if _, seen := latestRite[m.Account]; !seen {
				order = append(order, m.Account)
			}
			latestRite[m.Account] = m
		case taskstate.MemoTypeInitiationReward:
			if m.Account != o.node.NodeAddress {
				continue
			}
			rewardedEver[m.Destination] = true
			if m.Datetime.After(lastReward[m.Destination]) {
				lastReward[m.Destination] = m.Datetime
			}
		}
	}

	var out []initiationWork
	for _, user := range order {
		rite := latestRite[user]

		if o.cfg.EnableReinitiations {
			if !lastReward[user].IsZero() && lastReward[user].After(rite.Datetime) {
				continue
			}
		} else if rewardedEver[user] {
			continue
		}

		text := strings.TrimSpace(rite.MemoData)
		if len(text) < minRiteLength {
			continue
		}
		out = append(out, initiationWork{rite: rite, text: text})
	}
	return out
}

func (o *Orchestrator) rewardInitiation(ctx context.Context, work initiationWork) error {
	response, err := o.completer.CompleteSync(ctx, o.llmArgs(
		initiationJudgeSystemPrompt,
		initiationJudgeUserPrompt(work.text),
	))
	if err != nil {
		return fmt.Errorf("judge call failed: %w", err)
	}

	reward, ok := extractPipeInt(response, "Reward")
	if !ok {
		reward = o.cfg.MinRewardPFT
	}
	if reward < o.cfg.MinRewardPFT {
		reward = o.cfg.MinRewardPFT
	}
	if reward > o.cfg.MaxRewardPFT {
		reward = o.cfg.MaxRewardPFT
	}

	justification, ok := extractPipeField(response, "Justification")
	if !ok {
		justification = "Initiation acknowledged"
	}

	user := work.rite.Account
	results, err := o.sender.SendMemo(ctx, o.wallets[o.node.NodeAddress], user,
		taskstate.MemoTypeInitiationReward, o.node.NodeName, justification,
		float64(reward), submitter.SendFlags{})
	if err != nil {
		return fmt.Errorf("failed to send initiation reward: %w", err)
	}

	riteTime := work.rite.Datetime
	err = o.confirmSend(ctx, "initiation", func(history []database.DecodedMemo) bool {
		for _, m := range history {
			if m.MemoType == taskstate.MemoTypeInitiationReward &&
				o.sentByNode(m, user) && !m.Datetime.Before(riteTime) {
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
	o.record(ctx, work.rite.Hash, "initiation", lastResponseHash(results),
		fmt.Sprintf("rewarded %d PFT", reward))
	return nil
}
