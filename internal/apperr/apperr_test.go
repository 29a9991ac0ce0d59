package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{BadRequest, http.StatusBadRequest},
		{InvalidPath, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{ServiceUnavailable, http.StatusServiceUnavailable},
		{Upstream, http.StatusBadGateway},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.kind.HTTPStatus(); got != c.want {
			t.Errorf("Kind(%d).HTTPStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestKindOf_Unclassified_IsInternal(t *testing.T) {
	err := errors.New("boom")
	if got := KindOf(err); got != Internal {
		t.Errorf("KindOf(plain error) = %v, want Internal", got)
	}
	if got := HTTPStatus(err); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(plain error) = %d, want 500", got)
	}
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := New(Conflict, "Indexing already in progress")
	wrapped := fmt.Errorf("indexer.Run: %w", base)

	if got := KindOf(wrapped); got != Conflict {
		t.Errorf("KindOf(wrapped) = %v, want Conflict", got)
	}
	if got := HTTPStatus(wrapped); got != http.StatusConflict {
		t.Errorf("HTTPStatus(wrapped) = %d, want 409", got)
	}
}

func TestWrap_UnwrapsToCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Upstream, "LiteLLM request failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve the cause for errors.Is")
	}
	want := "LiteLLM request failed: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestMessage_HidesCause(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Wrap(Internal, "Logging error", cause)

	if got := Message(err); got != "Logging error" {
		t.Errorf("Message() = %q, want %q", got, "Logging error")
	}
}

func TestMessage_PlainError(t *testing.T) {
	err := errors.New("boom")
	if got := Message(err); got != "boom" {
		t.Errorf("Message() = %q, want %q", got, "boom")
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf(Upstream, "LiteLLM request failed: %d - %s", 503, "overloaded")
	want := "LiteLLM request failed: 503 - overloaded"
	if err.Msg != want {
		t.Errorf("Msg = %q, want %q", err.Msg, want)
	}
}

func TestSentinelIdentity(t *testing.T) {
	sentinel := New(Conflict, "Indexing already in progress")
	wrapped := fmt.Errorf("run_index: %w", sentinel)
	if !errors.Is(wrapped, sentinel) {
		t.Error("wrapped sentinel should satisfy errors.Is")
	}
}
