package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify_Sentinels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"unauthorized", ErrUnauthorized, ErrorAuthentication, false},
		{"rate limited", ErrRateLimited, ErrorRateLimit, true},
		{"invalid request", ErrInvalidRequest, ErrorValidation, false},
		{"server error", ErrServerError, ErrorServer, true},
		{"geocoding", ErrGeocodingFailed, ErrorGeocoding, false},
		{"deadline", context.DeadlineExceeded, ErrorTimeout, true},
		{"unknown", errors.New("connection reset"), ErrorNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := Classify("TestProvider", tt.err)
			if se.Type != tt.wantType {
				t.Errorf("Classify() type = %s, want %s", se.Type, tt.wantType)
			}
			if se.Retryable != tt.retryable {
				t.Errorf("Classify() retryable = %v, want %v", se.Retryable, tt.retryable)
			}
			if se.Source != "TestProvider" {
				t.Errorf("Classify() source = %s, want TestProvider", se.Source)
			}
		})
	}
}

func TestClassify_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("search request: %w", ErrUnauthorized)
	se := Classify("VolunteerHub", err)
	if se.Type != ErrorAuthentication {
		t.Errorf("Classify() type = %s, want %s", se.Type, ErrorAuthentication)
	}
}

func TestClassify_PassesThroughSearchError(t *testing.T) {
	orig := NewSearchError("JustServe", ErrorRateLimit, "429")
	wrapped := fmt.Errorf("attempt 2: %w", orig)

	se := Classify("JustServe", wrapped)
	if se != orig {
		t.Error("Classify() should return the original *SearchError unchanged")
	}
}

func TestErrorType_Retryable(t *testing.T) {
	retryable := []ErrorType{ErrorNetwork, ErrorTimeout, ErrorRateLimit, ErrorServer}
	for _, et := range retryable {
		if !et.Retryable() {
			t.Errorf("%s should be retryable", et)
		}
	}

	final := []ErrorType{ErrorAuthentication, ErrorValidation, ErrorGeocoding}
	for _, et := range final {
		if et.Retryable() {
			t.Errorf("%s should not be retryable", et)
		}
	}
}
