package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/generation"
)

type TurnRequest struct {
	Text        string
	Emotion     string
	VoiceID     string
	PresenterID string
	// Avatar asks for a video artifact as well.
	Avatar bool
}

// TurnResult holds one result per requested artifact. Speech and Avatar are
// nil when the reply failed validation or no video was requested.
type TurnResult struct {
	Reply  generation.Result  `json:"reply"`
	Speech *generation.Result `json:"speech,omitempty"`
	Avatar *generation.Result `json:"avatar,omitempty"`
}

// Turn answers one user message: the reply first, then speech and the
// optional avatar for the reply text, concurrently.
func (o *Orchestrator) Turn(ctx context.Context, conv *conversation.Context, req TurnRequest) TurnResult {
	out := TurnResult{
		Reply: o.Handle(ctx, conv, generation.Request{
			Kind:    generation.KindReply,
			Text:    req.Text,
			Emotion: req.Emotion,
		}),
	}
	if out.Reply.Status == generation.StatusFailed {
		return out
	}

	var (
		g              errgroup.Group
		speech, avatar generation.Result
	)
	g.Go(func() error {
		speech = o.Handle(ctx, conv, generation.Request{Kind: generation.KindSpeech, Text: out.Reply.Text, VoiceID: req.VoiceID})
		return nil
	})
	if req.Avatar {
		g.Go(func() error {
			avatar = o.Handle(ctx, conv, generation.Request{Kind: generation.KindAvatar, Text: out.Reply.Text, PresenterID: req.PresenterID})
			return nil
		})
	}
	_ = g.Wait()

	out.Speech = &speech
	if req.Avatar {
		out.Avatar = &avatar
	}
	return out
}
