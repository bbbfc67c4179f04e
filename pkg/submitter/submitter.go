// Package submitter implements the transaction submitter: composing
// memo-bearing PFT payments, signing them locally with the node wallet,
// submitting them, and reporting per-chunk outcomes.
package submitter

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/postfiat/taskengine/pkg/memo"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

// minOperatingBalanceDrops is the minimum XRP balance (12 XRP) the
// sending wallet must hold before the submitter will sign anything.
const minOperatingBalanceDrops = 12_000_000

// SendFlags selects the memo transforms applied before submission.
type SendFlags struct {
	Compress bool
	Encrypt  bool

	// SharedSecret keys the WHISPER__ envelope when Encrypt is set. A
	// nil secret with Encrypt set fails with ErrHandshakeRequired.
	SharedSecret []byte
}

// Ledger is the client surface the submitter needs; implemented by
// xrpl.Client.
type Ledger interface {
	AccountInfo(ctx context.Context, address string) (*xrpl.AccountInfo, error)
	SubmitAndWait(ctx context.Context, txBlobHex string) (*xrpl.SubmitResult, error)
}

// Submitter signs and submits memo-bearing payments.
type Submitter struct {
	ledger    Ledger
	pftIssuer string
	logger    *log.Logger
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithLogger sets a custom logger for the submitter.
func WithLogger(logger *log.Logger) Option {
	return func(s *Submitter) { s.logger = logger }
}

// NewSubmitter constructs a Submitter issuing PFT from pftIssuer.
func NewSubmitter(ledger Ledger, pftIssuer string, opts ...Option) *Submitter {
	s := &Submitter{
		ledger:    ledger,
		pftIssuer: pftIssuer,
		logger:    log.New(log.Writer(), "[Submitter] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FormatPFT renders a PFT amount as the ledger's decimal string.
func FormatPFT(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// SendMemo encodes payload (compressing/encrypting/chunking as flagged),
// signs one Payment per chunk carrying pftAmount PFT, submits each in
// order, and checks each preliminary submit result. On any failure the remaining chunks
// are aborted and the partial results are returned alongside the error.
func (s *Submitter) SendMemo(ctx context.Context, wallet *xrpl.Wallet, destination, memoType, memoFormat, payload string, pftAmount float64, flags SendFlags) ([]*xrpl.SubmitResult, error) {
	if flags.Encrypt && len(flags.SharedSecret) == 0 {
		return nil, ErrHandshakeRequired
	}

	raws, err := memo.Encode(memoType, memoFormat, payload, memo.EncodeOptions{
		Compress:     flags.Compress,
		Encrypt:      flags.Encrypt,
		SharedSecret: flags.SharedSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode memo: %w", err)
	}

	amount := xrpl.AmountIssued("PFT", s.pftIssuer, FormatPFT(pftAmount))

	var results []*xrpl.SubmitResult
	for i, raw := range raws {
		payment := &xrpl.Payment{
			TransactionType: "Payment",
			Account:         wallet.Address,
			Destination:     destination,
			Amount:          amount,
			Memos: []xrpl.MemoWrapper{{Memo: xrpl.Memo{
				MemoType:   raw.MemoType,
				MemoFormat: raw.MemoFormat,
				MemoData:   raw.MemoData,
			}}},
		}

		result, err := s.submit(ctx, wallet, payment)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			return results, fmt.Errorf("chunk %d/%d failed: %w", i+1, len(raws), err)
		}
	}
	return results, nil
}

// SendXRP sends a native-currency payment of drops, with an optional
// plaintext memo and destination tag.
func (s *Submitter) SendXRP(ctx context.Context, wallet *xrpl.Wallet, destination string, drops uint64, memoText string, destinationTag *uint32) (*xrpl.SubmitResult, error) {
	payment := &xrpl.Payment{
		TransactionType: "Payment",
		Account:         wallet.Address,
		Destination:     destination,
		Amount:          xrpl.AmountXRP(drops),
		DestinationTag:  destinationTag,
	}
	if memoText != "" {
		payment.Memos = []xrpl.MemoWrapper{{Memo: xrpl.Memo{
			MemoData: memo.EncodeField(memoText),
		}}}
	}
	return s.submit(ctx, wallet, payment)
}

// submit fills in the sequence from account state, verifies the wallet
// can operate, signs locally, and submits.
func (s *Submitter) submit(ctx context.Context, wallet *xrpl.Wallet, payment *xrpl.Payment) (*xrpl.SubmitResult, error) {
	info, err := s.ledger.AccountInfo(ctx, wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account state: %w", err)
	}

	balance, err := strconv.ParseUint(info.Balance, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable account balance %q: %w", info.Balance, err)
	}
	if balance < minOperatingBalanceDrops {
		return nil, fmt.Errorf("%w: %s drops", xrpl.ErrInsufficientXRPBalance, info.Balance)
	}

	payment.Sequence = info.Sequence

	signed, err := xrpl.SignPayment(wallet, payment)
	if err != nil {
		return nil, err
	}

	result, err := s.ledger.SubmitAndWait(ctx, signed.BlobHex)
	if result != nil && result.Hash == "" {
		result.Hash = signed.Hash
	}
	if err != nil {
		return result, err
	}

	s.logger.Printf("submitted %s -> %s (%s)", wallet.Address, payment.Destination, result.EngineResult)
	return result, nil
}
