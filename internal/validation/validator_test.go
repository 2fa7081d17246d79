// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package validation

import (
	"strings"
	"testing"
)

type shortenRequest struct {
	URL        string `validate:"required,http_url"`
	CustomCode string `validate:"omitempty,shortcode"`
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []shortenRequest{
		{URL: "https://example.com"},
		{URL: "http://example.com/path?q=1"},
		{URL: "https://example.com", CustomCode: "My-Code_1"},
		{URL: "https://example.com", CustomCode: "abc"},
	}

	for _, req := range tests {
		if err := ValidateStruct(&req); err != nil {
			t.Errorf("Expected %+v to validate, got: %v", req, err)
		}
	}
}

func TestValidateStruct_InvalidURL(t *testing.T) {
	tests := []string{
		"",
		"not-a-url",
		"ftp://example.com",
		"javascript:alert(1)",
		"//missing-scheme.com",
	}

	for _, url := range tests {
		req := shortenRequest{URL: url}
		if err := ValidateStruct(&req); err == nil {
			t.Errorf("Expected URL %q to fail validation", url)
		}
	}
}

func TestValidateStruct_ShortCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"ab", false},                      // too short
		{"abc", true},                      // minimum length
		{"My-Code_1", true},                // mixed charset
		{strings.Repeat("a", 20), true},    // maximum length
		{strings.Repeat("a", 21), false},   // too long
		{"has space", false},               // invalid char
		{"has/slash", false},               // invalid char
		{"café", false},               // non-ASCII
	}

	for _, tt := range tests {
		req := shortenRequest{URL: "https://example.com", CustomCode: tt.code}
		err := ValidateStruct(&req)
		if tt.valid && err != nil {
			t.Errorf("Expected code %q to validate, got: %v", tt.code, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("Expected code %q to fail validation", tt.code)
		}
	}
}

func TestToAPIError_SingleField(t *testing.T) {
	req := shortenRequest{URL: "not-a-url"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("Expected validation error")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected code VALIDATION_ERROR, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "URL") {
		t.Errorf("Expected message to name the field, got %q", apiErr.Message)
	}
}

func TestToAPIError_MultipleFields(t *testing.T) {
	req := shortenRequest{URL: "", CustomCode: "x"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("Expected validation error")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("Expected 2 field errors, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("Expected fields detail for multi-error response")
	}
}
