package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/protocol"
)

const outboundTimeout = 600 * time.Millisecond

// Live describes the session a websocket connection is bound to.
type Live struct {
	SessionID    string
	VoiceID      string
	PresenterID  string
	Conversation *conversation.Context
	// OnTurn runs after every answered user message.
	OnTurn func(ctx context.Context, req TurnRequest, res TurnResult)
}

// RunConnection answers user messages from inbound until it closes or ctx
// ends. Messages are handled one at a time, so replies keep their order.
func (o *Orchestrator) RunConnection(ctx context.Context, live Live, inbound <-chan any, outbound chan<- any) error {
	o.send(ctx, outbound, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: live.SessionID,
		Code:      "session_ready",
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			msg, isUser := raw.(protocol.UserMessage)
			if !isUser {
				o.send(ctx, outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: live.SessionID,
					Code:      "unsupported_message",
					Source:    "client",
					Detail:    "only user_message is accepted",
				})
				continue
			}
			o.answer(ctx, live, msg, outbound)
		}
	}
}

func (o *Orchestrator) answer(ctx context.Context, live Live, msg protocol.UserMessage, outbound chan<- any) {
	turnID := uuid.NewString()
	req := TurnRequest{
		Text:        msg.Text,
		Emotion:     msg.Emotion,
		VoiceID:     live.VoiceID,
		PresenterID: live.PresenterID,
		Avatar:      msg.Avatar,
	}
	res := o.Turn(ctx, live.Conversation, req)

	if res.Reply.Status == generation.StatusFailed {
		o.send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: live.SessionID,
			Code:      "invalid_request",
			Source:    "client",
			Detail:    string(res.Reply.ErrorKind),
		})
		return
	}

	o.send(ctx, outbound, protocol.AssistantReply{
		Type:      protocol.TypeAssistantReply,
		SessionID: live.SessionID,
		TurnID:    turnID,
		Text:      res.Reply.Text,
		Status:    string(res.Reply.Status),
		ErrorKind: string(res.Reply.ErrorKind),
	})
	if res.Speech != nil {
		o.send(ctx, outbound, media(protocol.TypeAssistantAudio, live.SessionID, turnID, *res.Speech))
	}
	if res.Avatar != nil {
		o.send(ctx, outbound, media(protocol.TypeAssistantVideo, live.SessionID, turnID, *res.Avatar))
	}
	if live.OnTurn != nil {
		live.OnTurn(ctx, req, res)
	}
}

func media(t protocol.MessageType, sessionID, turnID string, res generation.Result) protocol.AssistantMedia {
	return protocol.AssistantMedia{
		Type:      t,
		SessionID: sessionID,
		TurnID:    turnID,
		URL:       res.ArtifactURL,
		Status:    string(res.Status),
		Provider:  res.Provider,
		ErrorKind: string(res.ErrorKind),
	}
}

func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) {
	timer := time.NewTimer(outboundTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
		if o.metrics != nil {
			o.metrics.WSMessages.WithLabelValues("out", string(protocol.TypeOf(msg))).Inc()
		}
	case <-timer.C:
		if o.metrics != nil {
			o.metrics.SessionEvents.WithLabelValues("outbound_drop").Inc()
		}
	case <-ctx.Done():
	}
}
