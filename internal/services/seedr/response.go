package seedr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const logBodyLimit = 500

var errEmptyBody = errors.New("empty response body")

// failureCarrier is implemented by result types that can represent a
// non-2xx response themselves.
type failureCarrier interface {
	setFailure(statusCode int, detail string)
}

// handleResponse is the single place every JSON response passes through.
// Non-2xx responses become a failed result when T can carry one and a
// KindStatus error otherwise. Undecodable 2xx bodies become KindDecode.
func handleResponse[T any](c *Client, resp *http.Response, method, endpoint string) (*T, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debugf("Status Code: %d, Response: %s", resp.StatusCode, truncate(body, logBodyLimit))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result := new(T)
		if carrier, ok := any(result).(failureCarrier); ok {
			carrier.setFailure(resp.StatusCode, fmt.Sprintf("API Error: %s (Content: %s)", statusLine(resp.StatusCode), body))
			return result, nil
		}
		return nil, &Error{Kind: KindStatus, Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &Error{Kind: KindDecode, Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Err: errEmptyBody}
	}

	// encoding/json matches object keys to field tags case-insensitively.
	var result T
	if err := json.Unmarshal(trimmed, &result); err != nil {
		c.logger.Debugf("JSON deserialization error for %T: %v (body: %s)", result, err, truncate(body, 2*logBodyLimit))
		return nil, &Error{Kind: KindDecode, Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	return &result, nil
}

// statusLine renders the code itself rather than resp.Status, which a
// RoundTripper may leave empty.
func statusLine(code int) string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", code, http.StatusText(code)))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
