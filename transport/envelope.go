// ABOUTME: Standard response envelope decoding shared by the API clients
// ABOUTME: Unwraps {success, data, error, message} and paginated {data, meta} bodies

package transport

import (
	"encoding/json"
	"fmt"
)

// Envelope is the standard wrapper around every success response.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PageMeta is the pagination block of list responses.
type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginated is the body of list responses.
type Paginated[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// Decode unmarshals the whole body into T.
func Decode[T any](resp *Response) (T, error) {
	var v T
	if len(resp.Body) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return v, fmt.Errorf("invalid response from backend: %w", err)
	}
	return v, nil
}

// DecodeData unmarshals an envelope and returns its data.
func DecodeData[T any](resp *Response) (T, error) {
	env, err := Decode[Envelope[T]](resp)
	if err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}
