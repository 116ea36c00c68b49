package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
	// Code is the backend's machine-readable code, when it sends one.
	Code   string
	Errors []string
	Body   []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// IsUnauthorized reports whether err is an authentication failure (HTTP 401).
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// errorBody covers the shapes the backend uses for failures: a plain
// {message, errors: [...]} and the ASP.NET problem details
// {title, errors: {field: [...]}}.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Title   string          `json:"title"`
	Code    string          `json:"code"`
	Errors  json.RawMessage `json:"errors"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Method: method, Path: path, Body: body}

	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		apiErr.Message = strings.TrimSpace(string(truncate(body, 200)))
		return apiErr
	}

	apiErr.Code = eb.Code
	apiErr.Errors = flattenErrors(eb.Errors)
	switch {
	case eb.Message != "":
		apiErr.Message = eb.Message
	case eb.Error != "":
		apiErr.Message = eb.Error
	default:
		apiErr.Message = eb.Title
	}
	return apiErr
}

func flattenErrors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var byField map[string][]string
	if json.Unmarshal(raw, &byField) != nil {
		return nil
	}
	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		list = append(list, byField[f]...)
	}
	return list
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
