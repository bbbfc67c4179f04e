// Package taskstate implements the task state classifier: reducing a
// per-task-id memo sequence to one state in the fixed task lifecycle
//
//	REQUEST -> PROPOSAL -> { REFUSAL | ACCEPTANCE -> TASK_OUTPUT
//	    -> VERIFICATION_PROMPT -> VERIFICATION_RESPONSE -> REWARD }
//
// and exposing the derived per-account views the queue orchestrator scans.
package taskstate

import "regexp"

// TaskType is one stage of the task lifecycle, or TaskUnknown.
type TaskType string

const (
	TaskRequest              TaskType = "REQUEST_POST_FIAT"
	TaskProposal             TaskType = "PROPOSAL"
	TaskAcceptance           TaskType = "ACCEPTANCE"
	TaskRefusal              TaskType = "REFUSAL"
	TaskOutput               TaskType = "TASK_OUTPUT"
	TaskVerificationPrompt   TaskType = "VERIFICATION_PROMPT"
	TaskVerificationResponse TaskType = "VERIFICATION_RESPONSE"
	TaskReward               TaskType = "REWARD"

	// TaskUnknown covers memo_data that matches no known sentinel
	// (USER_GENESIS-style patterns): observed, cached, never acted on.
	TaskUnknown TaskType = "UNKNOWN"
)

// Sentinel strings prefixing (or, for the bare proposal separator,
// appearing inside) a task memo's memo_data.
const (
	RequestSentinel              = "REQUEST_POST_FIAT ___"
	ProposalSentinel             = "PROPOSED PF ___"
	ProposalSeparator            = " .. "
	AcceptanceSentinel           = "ACCEPTANCE REASON ___"
	RefusalSentinel              = "REFUSAL REASON ___"
	OutputSentinel               = "COMPLETION JUSTIFICATION ___"
	VerificationPromptSentinel   = "VERIFICATION PROMPT ___"
	VerificationResponseSentinel = "VERIFICATION RESPONSE ___"
	RewardSentinel               = "REWARD RESPONSE __"
)

// System memo types: fixed memo_type strings that are not task ids.
const (
	MemoTypeInitiationReward     = "INITIATION_REWARD"
	MemoTypeHandshake            = "HANDSHAKE"
	MemoTypeInitiationRite       = "INITIATION_RITE"
	MemoTypeGoogleDocContextLink = "google_doc_context_link"
	MemoTypeDiscordWalletFunding = "discord_wallet_funding"
)

// SystemMemoTypes lists every non-task-scoped memo_type the engine knows.
var SystemMemoTypes = []string{
	MemoTypeInitiationReward,
	MemoTypeHandshake,
	MemoTypeInitiationRite,
	MemoTypeGoogleDocContextLink,
	MemoTypeDiscordWalletFunding,
}

// taskIDPattern matches YYYY-MM-DD_HH:MM with an optional __XXXX suffix
// of four uppercase alphanumerics.
var taskIDPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}:\d{2}(__[A-Z0-9]{4})?$`)

// IsTaskID reports whether memoType is a well-formed task id.
func IsTaskID(memoType string) bool {
	return taskIDPattern.MatchString(memoType)
}

// IsSystemMemoType reports whether memoType is one of the fixed system
// memo types.
func IsSystemMemoType(memoType string) bool {
	for _, t := range SystemMemoTypes {
		if memoType == t {
			return true
		}
	}
	return false
}
