// hex.go handles the outermost wire encoding: the three memo fields
// (MemoType, MemoFormat, MemoData) are transmitted on-ledger as
// hex-encoded UTF-8 strings.
package memo

import "encoding/hex"

// EncodeField hex-encodes a UTF-8 memo field for transmission.
func EncodeField(s string) string {
	return hex.EncodeToString([]byte(s))
}

// DecodeField hex-decodes a transmitted memo field back to UTF-8.
func DecodeField(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Raw is the hex-encoded, on-ledger form of one memo.
type Raw struct {
	MemoType   string
	MemoFormat string
	MemoData   string
}

// Decoded is a memo's {memo_type, memo_format, memo_data} after
// hex-decoding but before chunk/compress/encrypt unwrapping.
type Decoded struct {
	MemoType   string
	MemoFormat string
	MemoData   string
}

// DecodeRaw hex-decodes all three fields of a raw on-ledger memo.
func DecodeRaw(r Raw) (Decoded, error) {
	memoType, err := DecodeField(r.MemoType)
	if err != nil {
		return Decoded{}, ErrMalformedMemo
	}
	memoFormat, err := DecodeField(r.MemoFormat)
	if err != nil {
		return Decoded{}, ErrMalformedMemo
	}
	memoData, err := DecodeField(r.MemoData)
	if err != nil {
		return Decoded{}, ErrMalformedMemo
	}
	return Decoded{MemoType: memoType, MemoFormat: memoFormat, MemoData: memoData}, nil
}

// EncodeRaw hex-encodes a decoded memo's three fields for transmission.
func EncodeRaw(d Decoded) Raw {
	return Raw{
		MemoType:   EncodeField(d.MemoType),
		MemoFormat: EncodeField(d.MemoFormat),
		MemoData:   EncodeField(d.MemoData),
	}
}
