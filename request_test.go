package springseq

import (
	"errors"
	"testing"
)

func TestRequestAttemptCounters(t *testing.T) {
	req := &Request{}

	req.switchProvider("primary")
	req.nextAttempt()
	req.nextAttempt()
	req.switchProvider("secondary")
	attempt, providerAttempt := req.nextAttempt()

	if attempt != 3 || providerAttempt != 1 {
		t.Errorf("Expected attempt 3, provider attempt 1, got %d and %d", attempt, providerAttempt)
	}
	if req.ProviderName() != "secondary" {
		t.Errorf("Expected secondary, got %q", req.ProviderName())
	}
}

func TestRequestDropsStaleAttempts(t *testing.T) {
	req := &Request{}
	first, _ := req.nextAttempt()
	second, _ := req.nextAttempt()

	req.complete(first, &ProviderResponse{Content: "late", Model: "m1"})
	req.fail(first, errors.New("late failure"))
	if req.Response() != "" || req.Err() != nil {
		t.Fatalf("A superseded attempt must not write, got %q %v", req.Response(), req.Err())
	}

	req.complete(second, &ProviderResponse{Content: "current", Model: "m2", Usage: TokenUsage{Total: 7}})
	if req.Response() != "current" || req.Model() != "m2" {
		t.Errorf("Expected the current reply, got %q from %q", req.Response(), req.Model())
	}
	if req.Usage() == nil || req.Usage().Total != 7 {
		t.Errorf("Expected usage to be kept, got %+v", req.Usage())
	}
}

func TestRequestNextAttemptClearsFailure(t *testing.T) {
	req := &Request{}
	attempt, _ := req.nextAttempt()
	req.fail(attempt, ErrTransport)
	if !errors.Is(req.Err(), ErrTransport) {
		t.Fatalf("Expected the failure to be recorded, got %v", req.Err())
	}

	req.nextAttempt()
	if req.Err() != nil {
		t.Errorf("A new attempt starts clean, got %v", req.Err())
	}
	if req.Attempt() != 2 {
		t.Errorf("Expected attempt 2, got %d", req.Attempt())
	}
}
