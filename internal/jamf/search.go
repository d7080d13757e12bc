package jamf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SearchRef identifies a saved search on the backend.
type SearchRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type searchListPayload struct {
	AdvancedComputerSearches []SearchRef `json:"advanced_computer_searches"`
}

// FetchSearch retrieves the raw payload of one saved search. The payload
// is returned exactly as received; schema validation belongs to the
// caller so that cached and live payloads go through the same check.
func (c *Client) FetchSearch(ctx context.Context, searchID string) ([]byte, error) {
	op := fmt.Sprintf("fetch search %s", searchID)

	req, err := c.authedRequest(ctx, http.MethodGet,
		"/JSSResource/advancedcomputersearches/id/"+searchID, nil)
	if err != nil {
		return nil, &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &AuthError{Kind: Unauthorized, Op: op}
	case http.StatusTooManyRequests:
		return nil, &AuthError{Kind: RateLimited, Op: op}
	default:
		return nil, &AuthError{Kind: ConnectionFailed, Op: op,
			Err: &StatusError{Op: op, StatusCode: resp.StatusCode}}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Kind: ConnectionFailed, Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}
	return payload, nil
}

// ListSearches returns the saved searches available on the backend.
func (c *Client) ListSearches(ctx context.Context) ([]SearchRef, error) {
	const op = "list searches"

	req, err := c.authedRequest(ctx, http.MethodGet, "/JSSResource/advancedcomputersearches", nil)
	if err != nil {
		return nil, &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &AuthError{Kind: Unauthorized, Op: op}
	case http.StatusTooManyRequests:
		return nil, &AuthError{Kind: RateLimited, Op: op}
	default:
		return nil, &AuthError{Kind: ConnectionFailed, Op: op,
			Err: &StatusError{Op: op, StatusCode: resp.StatusCode}}
	}

	var body searchListPayload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &AuthError{Kind: ConnectionFailed, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return body.AdvancedComputerSearches, nil
}
