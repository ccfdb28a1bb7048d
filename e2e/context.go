package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TestContext holds the HTTP client and the last response of a scenario.
type TestContext struct {
	BaseURL string
	// InternalToken is sent as X-Internal-Token on every request.
	InternalToken string

	client     *http.Client
	statusCode int
	body       map[string]interface{}
	rawBody    []byte
	memberID   string
}

// NewTestContext returns a context talking to the server at baseURL.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.statusCode = 0
	tc.body = nil
	tc.rawBody = nil
	tc.memberID = ""
}

func (tc *TestContext) POST(path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, tc.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) POSTRaw(path, body string) error {
	req, err := http.NewRequest(http.MethodPost, tc.BaseURL+path, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.BaseURL+path, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	if tc.InternalToken != "" {
		req.Header.Set("X-Internal-Token", tc.InternalToken)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.statusCode = resp.StatusCode
	tc.rawBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.body = nil
	if len(tc.rawBody) > 0 {
		if err := json.Unmarshal(tc.rawBody, &tc.body); err != nil {
			return fmt.Errorf("decode response %q: %w", tc.rawBody, err)
		}
	}
	return nil
}

func (tc *TestContext) GetStatusCode() int {
	return tc.statusCode
}

// GetResponseField reads a top-level field, or a field of the data object
// when the name is prefixed with "data.".
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	if tc.body == nil {
		return nil, fmt.Errorf("no response body")
	}
	const prefix = "data."
	if len(field) > len(prefix) && field[:len(prefix)] == prefix {
		data, ok := tc.body["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("response has no data object: %s", tc.rawBody)
		}
		v, ok := data[field[len(prefix):]]
		if !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.rawBody)
		}
		return v, nil
	}
	v, ok := tc.body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not found in %s", field, tc.rawBody)
	}
	return v, nil
}

func (tc *TestContext) GetMemberID() string {
	return tc.memberID
}

func (tc *TestContext) SetMemberID(memberID string) {
	tc.memberID = memberID
}
