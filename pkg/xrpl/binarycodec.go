// binarycodec.go serializes Payment transactions into XRPL's canonical
// binary format, the form that gets signed and submitted as tx_blob. Only
// the field subset this engine emits is implemented: Payment with an
// XRP-drops or issued-currency Amount, at most one memo, and Ed25519
// signing fields.
package xrpl

import (
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field ids (type code, field code) from the XRPL binary format
// definitions, restricted to what a memo-bearing Payment needs.
const (
	typeUInt16    = 1
	typeUInt32    = 2
	typeAmount    = 6
	typeBlob      = 7
	typeAccountID = 8
	typeObject    = 14
	typeArray     = 15

	fieldTransactionType    = 2  // UInt16
	fieldSequence           = 4  // UInt32
	fieldDestinationTag     = 14 // UInt32
	fieldLastLedgerSequence = 27 // UInt32
	fieldAmount             = 1  // Amount
	fieldFee                = 8  // Amount
	fieldSigningPubKey      = 3  // Blob
	fieldTxnSignature       = 4  // Blob
	fieldMemoType           = 12 // Blob
	fieldMemoData           = 13 // Blob
	fieldMemoFormat         = 14 // Blob
	fieldAccount            = 1  // AccountID
	fieldDestination        = 3  // AccountID
	fieldMemo               = 10 // Object
	fieldObjectEnd          = 1  // Object end marker
	fieldMemos              = 9  // Array
	fieldArrayEnd           = 1  // Array end marker
)

const paymentTransactionType = 0

// Signing and hashing prefixes (network magic).
var (
	signaturePrefix = []byte{0x53, 0x54, 0x58, 0x00} // "STX\0"
	txIDPrefix      = []byte{0x54, 0x58, 0x4E, 0x00} // "TXN\0"
)

// fieldHeader encodes a field id. Both codes this engine uses fit the
// compact forms (type < 16, field < 256).
func fieldHeader(typeCode, fieldCode int) []byte {
	if fieldCode < 16 {
		return []byte{byte(typeCode<<4 | fieldCode)}
	}
	return []byte{byte(typeCode << 4), byte(fieldCode)}
}

// encodeVariableLength emits the length prefix for a variable-length
// field. Memo payloads are capped well under the two-byte range.
func encodeVariableLength(n int) ([]byte, error) {
	switch {
	case n <= 192:
		return []byte{byte(n)}, nil
	case n <= 12480:
		n -= 193
		return []byte{byte(193 + n>>8), byte(n & 0xFF)}, nil
	default:
		return nil, fmt.Errorf("variable-length field too large: %d bytes", n)
	}
}

// serializer accumulates canonically ordered fields.
type serializer struct {
	buf []byte
	err error
}

func (s *serializer) uint16Field(fieldCode int, v uint16) {
	s.buf = append(s.buf, fieldHeader(typeUInt16, fieldCode)...)
	s.buf = binary.BigEndian.AppendUint16(s.buf, v)
}

func (s *serializer) uint32Field(fieldCode int, v uint32) {
	s.buf = append(s.buf, fieldHeader(typeUInt32, fieldCode)...)
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) amountField(fieldCode int, amount interface{}) {
	if s.err != nil {
		return
	}
	encoded, err := encodeAmount(amount)
	if err != nil {
		s.err = fmt.Errorf("failed to encode amount field %d: %w", fieldCode, err)
		return
	}
	s.buf = append(s.buf, fieldHeader(typeAmount, fieldCode)...)
	s.buf = append(s.buf, encoded...)
}

func (s *serializer) blobField(fieldCode int, hexValue string) {
	if s.err != nil {
		return
	}
	raw, err := hex.DecodeString(hexValue)
	if err != nil {
		s.err = fmt.Errorf("invalid hex in blob field %d: %w", fieldCode, err)
		return
	}
	length, err := encodeVariableLength(len(raw))
	if err != nil {
		s.err = err
		return
	}
	s.buf = append(s.buf, fieldHeader(typeBlob, fieldCode)...)
	s.buf = append(s.buf, length...)
	s.buf = append(s.buf, raw...)
}

func (s *serializer) accountIDField(fieldCode int, address string) {
	if s.err != nil {
		return
	}
	accountID, err := accountIDFromAddress(address)
	if err != nil {
		s.err = fmt.Errorf("invalid address in field %d: %w", fieldCode, err)
		return
	}
	s.buf = append(s.buf, fieldHeader(typeAccountID, fieldCode)...)
	s.buf = append(s.buf, byte(len(accountID)))
	s.buf = append(s.buf, accountID...)
}

func (s *serializer) memosField(memos []MemoWrapper) {
	if s.err != nil || len(memos) == 0 {
		return
	}
	s.buf = append(s.buf, fieldHeader(typeArray, fieldMemos)...)
	for _, wrapper := range memos {
		s.buf = append(s.buf, fieldHeader(typeObject, fieldMemo)...)
		// Inner fields in canonical (field code) order.
		if wrapper.Memo.MemoType != "" {
			s.blobField(fieldMemoType, wrapper.Memo.MemoType)
		}
		if wrapper.Memo.MemoData != "" {
			s.blobField(fieldMemoData, wrapper.Memo.MemoData)
		}
		if wrapper.Memo.MemoFormat != "" {
			s.blobField(fieldMemoFormat, wrapper.Memo.MemoFormat)
		}
		s.buf = append(s.buf, fieldHeader(typeObject, fieldObjectEnd)...)
	}
	s.buf = append(s.buf, fieldHeader(typeArray, fieldArrayEnd)...)
}

// SerializePayment produces the canonical binary form of p. When
// forSigning is true, the TxnSignature field is omitted (the signature
// covers everything else).
func SerializePayment(p *Payment, forSigning bool) ([]byte, error) {
	s := &serializer{}

	// Canonical ordering: fields sorted by (type code, field code).
	s.uint16Field(fieldTransactionType, paymentTransactionType)
	s.uint32Field(fieldSequence, p.Sequence)
	if p.DestinationTag != nil {
		s.uint32Field(fieldDestinationTag, *p.DestinationTag)
	}
	if p.LastLedgerSequence != 0 {
		s.uint32Field(fieldLastLedgerSequence, p.LastLedgerSequence)
	}
	s.amountField(fieldAmount, p.Amount)
	s.amountField(fieldFee, p.Fee)
	s.blobField(fieldSigningPubKey, p.SigningPubKey)
	if !forSigning && p.TxnSignature != "" {
		s.blobField(fieldTxnSignature, p.TxnSignature)
	}
	s.accountIDField(fieldAccount, p.Account)
	s.accountIDField(fieldDestination, p.Destination)
	s.memosField(p.Memos)

	if s.err != nil {
		return nil, s.err
	}
	return s.buf, nil
}

const (
	amountNotXRPBit    = uint64(1) << 63
	amountPositiveBit  = uint64(1) << 62
	issuedExponentBias = 97
	issuedMantissaMin  = uint64(1_000_000_000_000_000) // 10^15
	issuedMantissaMax  = uint64(9_999_999_999_999_999) // 10^16 - 1
)

// encodeAmount handles the two Amount forms this engine emits: an XRP
// drops string, or an IssuedAmount.
func encodeAmount(amount interface{}) ([]byte, error) {
	switch a := amount.(type) {
	case string:
		drops, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid drops amount %q: %w", a, err)
		}
		if drops > uint64(math.MaxInt64) {
			return nil, fmt.Errorf("drops amount out of range: %d", drops)
		}
		var out [8]byte
		binary.BigEndian.PutUint64(out[:], drops|amountPositiveBit)
		return out[:], nil
	case IssuedAmount:
		return encodeIssuedAmount(a)
	case *IssuedAmount:
		return encodeIssuedAmount(*a)
	default:
		return nil, fmt.Errorf("unsupported amount type %T", amount)
	}
}

// encodeIssuedAmount packs an issued-currency amount into its 48-byte
// form: the 64-bit value, the 160-bit currency code, and the 160-bit
// issuer account id.
func encodeIssuedAmount(a IssuedAmount) ([]byte, error) {
	mantissa, exponent, err := normalizeDecimal(a.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid issued amount value %q: %w", a.Value, err)
	}

	var bits uint64
	if mantissa == 0 {
		bits = amountNotXRPBit
	} else {
		bits = amountNotXRPBit | amountPositiveBit |
			uint64(exponent+issuedExponentBias)<<54 | mantissa
	}

	out := make([]byte, 0, 48)
	out = binary.BigEndian.AppendUint64(out, bits)

	currency, err := encodeCurrency(a.Currency)
	if err != nil {
		return nil, err
	}
	out = append(out, currency...)

	issuer, err := accountIDFromAddress(a.Issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer address: %w", err)
	}
	out = append(out, issuer...)
	return out, nil
}

// normalizeDecimal parses a positive decimal string into the XRPL issued
// amount's (mantissa, exponent) normal form with the mantissa in
// [10^15, 10^16).
func normalizeDecimal(value string) (mantissa uint64, exponent int, err error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "-") {
		return 0, 0, fmt.Errorf("amount must be a positive decimal")
	}

	intPart, fracPart := value, ""
	if dot := strings.IndexByte(value, '.'); dot >= 0 {
		intPart, fracPart = value[:dot], value[dot+1:]
	}

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return 0, 0, nil
	}
	exponent = -len(fracPart)

	// Strip trailing zeros into the exponent before range-checking the
	// mantissa.
	for strings.HasSuffix(digits, "0") {
		digits = digits[:len(digits)-1]
		exponent++
	}
	if len(digits) > 16 {
		return 0, 0, fmt.Errorf("too many significant digits")
	}

	mantissa, err = strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	for mantissa < issuedMantissaMin {
		mantissa *= 10
		exponent--
	}
	if mantissa > issuedMantissaMax {
		return 0, 0, fmt.Errorf("mantissa out of range")
	}
	if exponent < -96 || exponent > 80 {
		return 0, 0, fmt.Errorf("exponent out of range: %d", exponent)
	}
	return mantissa, exponent, nil
}

// encodeCurrency packs a 3-character ISO-style currency code ("PFT")
// into its 20-byte standard form: ASCII at bytes 12-14.
func encodeCurrency(code string) ([]byte, error) {
	if len(code) != 3 {
		return nil, fmt.Errorf("unsupported currency code %q", code)
	}
	out := make([]byte, 20)
	copy(out[12:], code)
	return out, nil
}

// accountIDFromAddress decodes an r-address to its 20-byte account id.
func accountIDFromAddress(address string) ([]byte, error) {
	version, payload, err := decodeCheck(rippleBase58, address)
	if err != nil {
		return nil, err
	}
	if version != addressVersion || len(payload) != 20 {
		return nil, fmt.Errorf("not an account address")
	}
	return payload, nil
}

// sha512Half is XRPL's standard hash: the first 32 bytes of SHA-512.
func sha512Half(data []byte) []byte {
	h := sha512.Sum512(data)
	return h[:32]
}

// TxHash computes the transaction id of a fully signed, serialized
// transaction: SHA-512Half over the TXN prefix plus the blob, upper hex.
func TxHash(serialized []byte) string {
	return strings.ToUpper(hex.EncodeToString(sha512Half(append(append([]byte{}, txIDPrefix...), serialized...))))
}
