// prompts.go holds the prompt templates for the four LLM-backed queues.
// Output formats are pipe-delimited so parse.go can extract fields from
// otherwise free-form text.
package queue

import "fmt"

const taskGenerationSystemPrompt = `You are the Post Fiat task generation system. You convert a user's ` +
	`request and their working context into a single concrete task they can complete and prove ` +
	`completion of. Tasks must be specific, verifiable, and sized for roughly one focused work session.`

func taskGenerationUserPrompt(userContext, request string) string {
	return fmt.Sprintf(`The user's context follows.

<CONTEXT START>
%s
<CONTEXT END>

The user requested:
%s

Generate one candidate task for this user. Respond with exactly one line in the format:
<task description> .. <integer value between 10 and 950>

The value reflects the task's difficulty and importance to the user's stated objectives.`,
		userContext, request)
}

const taskSelectionSystemPrompt = `You are the Post Fiat task selection system. Given several candidate ` +
	`tasks and the user's context, you choose the single best task.`

func taskSelectionUserPrompt(userContext string, candidates []string) string {
	list := ""
	for i, c := range candidates {
		list += fmt.Sprintf("%d. %s\n", i+1, c)
	}
	return fmt.Sprintf(`The user's context follows.

<CONTEXT START>
%s
<CONTEXT END>

Candidate tasks:
%s
Weigh each candidate against the user's context and objectives. Explain your reasoning first, then
end your response with the chosen candidate's number in exactly this format:

| BEST OUTPUT | <integer> |

Do not include any explanation after the BEST OUTPUT integer.`, userContext, list)
}

const initiationJudgeSystemPrompt = `You are the Post Fiat initiation rite judge. A new user has committed ` +
	`to an objective. You score the commitment's sincerity and concreteness and issue an initial grant.`

func initiationJudgeUserPrompt(rite string) string {
	return fmt.Sprintf(`The user's initiation rite:

%s

Judge the rite. A concrete, actionable commitment earns more; vague aspiration earns less.
Respond with your reasoning followed by exactly:

| Justification | <one concise sentence> |
| Reward | <integer between 1 and 100> |`, rite)
}

const verificationQuestionSystemPrompt = `You are the Post Fiat verification system. A user claims to have ` +
	`completed a task. You pose one question whose answer would demonstrate the work was actually done.`

func verificationQuestionUserPrompt(proposal, completion string) string {
	return fmt.Sprintf(`The original task:
%s

The user's completion claim:
%s

Write a single short verifying question that the user can only answer well if the work is real.
Respond with your reasoning followed by exactly:

| Verifying Question | <text for question> |`, proposal, completion)
}

const rewardJudgeSystemPrompt = `You are the Post Fiat reward system. You decide the final PFT reward for ` +
	`a completed and verified task, weighing the evidence against the originally proposed value.`

func rewardJudgeUserPrompt(proposal, verificationPrompt, verificationResponse, docText, rewardHistory string, proposedReward int) string {
	return fmt.Sprintf(`The original task:
%s

The verification question posed:
%s

The user's verification response:
%s

The task verification section of the user's context document:
%s

The user's recent reward history:
%s

Judge whether the work was done as claimed. Discount unverifiable claims. Respond with your
reasoning followed by exactly:

| Summary Judgment | <2 short sentences summarizing your reasoning - keep it succinct> |
| Total PFT Rewarded | <integer up to a value of %d> |`,
		proposal, verificationPrompt, verificationResponse, docText, rewardHistory, proposedReward)
}
