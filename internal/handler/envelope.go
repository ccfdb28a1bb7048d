package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"membership/internal/membership/models"
)

// Event is the request envelope. Body carries the step's JSON object.
type Event struct {
	Body string `json:"body"`
}

// Response is the response envelope returned by every step.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

// Result is the JSON object carried in Response.Body.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var errInvalidJSON = errors.New("request body is not a JSON object")

// Decode parses the body of a response produced by a step.
func (r Response) Decode() (Result, error) {
	var res Result
	err := json.Unmarshal([]byte(r.Body), &res)
	return res, err
}

// Payload returns the data object of a successful result.
func (r Result) Payload() models.Payload {
	switch d := r.Data.(type) {
	case models.Payload:
		return d
	case map[string]any:
		return models.Payload(d)
	default:
		return nil
	}
}

func newResponse(status int, result Result) Response {
	body, err := json.Marshal(result)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"message":"Internal server error"}`)
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func decodeObject(body string, v any) error {
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return errors.Join(errInvalidJSON, err)
	}
	return nil
}

func decodePayload(body string) (models.Payload, error) {
	var p models.Payload
	if err := decodeObject(body, &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errInvalidJSON
	}
	return p, nil
}
