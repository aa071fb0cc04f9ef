// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating JSON request
// bodies, including the decimal money fields used across the API.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"divvy/internal/core"
)

// maxBodyBytes caps request bodies. The largest legitimate payload is an
// expense with custom allocations, far below this.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// DecodeJSONBody reads and decodes a JSON request body into dst. Unknown
// fields are rejected so typos fail loudly instead of silently defaulting.
func DecodeJSONBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	// A second value means trailing garbage after the JSON document.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ParseAmount converts a decimal string like "12.34" into Money, requiring a
// positive value.
func ParseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// ParseOptionalAmount converts a decimal string into Money, treating empty as
// zero and allowing zero values. Used for tax and tip fields.
func ParseOptionalAmount(s string) (core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseShareCents(s)
	if err != nil {
		return core.Money{}, err
	}
	if cents < 0 {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.Money{Cents: cents}, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
