// docfetch.go fetches the task verification section of a user's linked
// Google document. The fetcher is a thin external collaborator: the
// engine only depends on FetchVerificationText and tolerates any failure.
package queue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// docTextPlaceholder stands in for the verification section whenever the
// document cannot be fetched or carries no section markers.
const docTextPlaceholder = "No Google Document Verification Section Available"

var (
	docIDPattern               = regexp.MustCompile(`/document/d/([a-zA-Z0-9_-]+)`)
	verificationSectionPattern = regexp.MustCompile(`(?s)TASK VERIFICATION SECTION START(.*?)TASK VERIFICATION SECTION END`)
)

// GoogleDocFetcher fetches shared Google documents as plain text.
type GoogleDocFetcher struct {
	httpClient *http.Client
}

// NewGoogleDocFetcher constructs a GoogleDocFetcher.
func NewGoogleDocFetcher() *GoogleDocFetcher {
	return &GoogleDocFetcher{httpClient: &http.Client{Timeout: 20 * time.Second}}
}

// FetchVerificationText downloads the document behind a share link and
// extracts the text between the task verification section markers.
func (f *GoogleDocFetcher) FetchVerificationText(ctx context.Context, link string) (string, error) {
	m := docIDPattern.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("unrecognized document link %q", link)
	}
	exportURL := fmt.Sprintf("https://docs.google.com/document/d/%s/export?format=txt", m[1])

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document fetch returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	section := verificationSectionPattern.FindSubmatch(body)
	if section == nil {
		return "", fmt.Errorf("document carries no task verification section")
	}
	return strings.TrimSpace(string(section[1])), nil
}
