// compress.go implements the "COMPRESSED__" payload transform: Brotli
// compression followed by URL-safe base64.
package memo

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressedPrefix marks a memo payload whose remainder is
// brotli-compressed, base64url-encoded text.
const CompressedPrefix = "COMPRESSED__"

// compressString brotli-compresses text and returns it base64url-encoded.
func compressString(text string) (string, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("brotli compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("brotli compression failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressString reverses compressString.
func decompressString(encoded string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 in compressed payload: %v", ErrDecompressFailed, err)
	}
	r := brotli.NewReader(bytes.NewReader(raw))
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: brotli decompression failed: %v", ErrDecompressFailed, err)
	}
	return string(out), nil
}
