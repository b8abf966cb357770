// Package generation holds the request/result vocabulary shared by every
// provider client and the orchestrator, the error taxonomy, and the single
// fallback policy all provider clients route through.
package generation

import (
	"fmt"
	"strings"
)

// Kind selects which artifact a request asks for.
type Kind string

const (
	KindReply  Kind = "reply"
	KindSpeech Kind = "speech"
	KindAvatar Kind = "avatar"
)

func (k Kind) Valid() bool {
	switch k {
	case KindReply, KindSpeech, KindAvatar:
		return true
	default:
		return false
	}
}

// Status is the normalized outcome of one orchestration call.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFallback Status = "fallback"
	StatusFailed   Status = "failed"
)

// Request is a single generation request. It is passed by value and never
// mutated after construction.
type Request struct {
	Kind        Kind
	Text        string
	VoiceID     string
	PresenterID string
	Emotion     string
}

// Validate reports caller-input problems. It is the only source of
// StatusFailed results.
func (r Request) Validate() error {
	if !r.Kind.Valid() {
		return Invalid("unknown request kind %q", r.Kind)
	}
	if strings.TrimSpace(r.Text) == "" {
		return Invalid("text is required")
	}
	return nil
}

// Result is what every orchestration call returns. ArtifactURL is set for
// speech and avatar, Text for replies.
type Result struct {
	Kind        Kind      `json:"kind"`
	Status      Status    `json:"status"`
	ArtifactURL string    `json:"artifact_url,omitempty"`
	Text        string    `json:"text,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	Provider    string    `json:"provider,omitempty"`
}

// OK builds a successful result.
func OK(kind Kind, provider string) Result {
	return Result{Kind: kind, Status: StatusOK, Provider: provider}
}

// Failed builds a validation failure result.
func Failed(kind Kind, err error) Result {
	return Result{Kind: kind, Status: StatusFailed, ErrorKind: KindOf(err)}
}

func (r Result) String() string {
	ref := r.ArtifactURL
	if ref == "" {
		ref = fmt.Sprintf("%d chars", len(r.Text))
	}
	if r.ErrorKind != "" {
		return fmt.Sprintf("%s/%s (%s) %s", r.Kind, r.Status, r.ErrorKind, ref)
	}
	return fmt.Sprintf("%s/%s %s", r.Kind, r.Status, ref)
}
