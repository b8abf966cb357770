package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/solace/internal/chat"
	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/observability"
	"github.com/ent0n29/solace/internal/protocol"
)

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	turns  []conversation.Turn
	ctxErr error
}

func (f *fakeCompleter) Name() string { return "fake-chat" }

func (f *fakeCompleter) Complete(ctx context.Context, turns []conversation.Turn, _ chat.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.turns = turns
	f.ctxErr = ctx.Err()
	return f.reply, f.err
}

type fakeMedia struct {
	mu    sync.Mutex
	kind  generation.Kind
	ids   []string
	panic bool
}

func (f *fakeMedia) Synthesize(_ context.Context, text, id string) generation.Result {
	if f.panic {
		panic("provider exploded")
	}
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()
	return generation.Result{Kind: f.kind, Status: generation.StatusOK, ArtifactURL: "/" + string(f.kind) + "/" + id, Provider: "fake"}
}

func newTestOrchestrator(c chat.Completer) (*Orchestrator, *fakeMedia, *fakeMedia, *observability.Metrics) {
	speech := &fakeMedia{kind: generation.KindSpeech}
	avatar := &fakeMedia{kind: generation.KindAvatar}
	metrics := observability.NewMetrics("test", nil)
	o := New(c, speech, avatar, metrics, Config{HistoryWindow: 4}, zerolog.Nop())
	return o, speech, avatar, metrics
}

func seriesSamples(m *observability.Metrics, series string) int {
	for _, s := range m.SnapshotLatency().Series {
		if s.Series == series {
			return s.Samples
		}
	}
	return 0
}

func TestReplyAppendsExchangeOnSuccess(t *testing.T) {
	c := &fakeCompleter{reply: "That sounds really heavy. What's been on your mind?"}
	o, _, _, metrics := newTestOrchestrator(c)
	conv := conversation.Seeded(conversation.SystemPrompt)

	res := o.Handle(context.Background(), conv, generation.Request{Kind: generation.KindReply, Text: "I feel anxious", Emotion: "fearful"})

	require.Equal(t, generation.StatusOK, res.Status)
	assert.Equal(t, c.reply, res.Text)
	assert.Equal(t, "fake-chat", res.Provider)

	turns := conv.Snapshot()
	require.Len(t, turns, 3)
	assert.Equal(t, conversation.RoleUser, turns[1].Role)
	assert.Equal(t, "I feel anxious", turns[1].Text)
	assert.Equal(t, conversation.RoleAssistant, turns[2].Role)

	require.Len(t, c.turns, 2)
	assert.Contains(t, c.turns[0].Text, "Current context:")
	assert.NotContains(t, turns[0].Text, "Current context:", "emotion hint must not leak into stored context")
	assert.Equal(t, 1, seriesSamples(metrics, "reply/ok"))
}

func TestReplyFailureLeavesConversationUntouched(t *testing.T) {
	c := &fakeCompleter{err: &generation.ProviderError{Provider: "fake-chat", Kind: generation.ErrProviderRateLimited, Status: 429}}
	o, _, _, metrics := newTestOrchestrator(c)
	conv := conversation.Seeded(conversation.SystemPrompt)

	res := o.Handle(context.Background(), conv, generation.Request{Kind: generation.KindReply, Text: "hello"})

	assert.Equal(t, generation.StatusFallback, res.Status)
	assert.Equal(t, generation.ErrorKindRateLimited, res.ErrorKind)
	assert.Equal(t, FallbackReply, res.Text)
	assert.Equal(t, 1, conv.Len())
	assert.Equal(t, 1, seriesSamples(metrics, "reply/fallback"))
}

func TestReplyWithoutCompleterUsesCannedReply(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(nil)
	conv := conversation.Seeded(conversation.SystemPrompt)

	res := o.Handle(context.Background(), conv, generation.Request{Kind: generation.KindReply, Text: "hello"})

	assert.Equal(t, generation.StatusFallback, res.Status)
	assert.Equal(t, generation.ErrorKindUnconfigured, res.ErrorKind)
	assert.Equal(t, "fallback", o.ChatProvider())
}

func TestEmptyCompletionDegrades(t *testing.T) {
	c := &fakeCompleter{reply: "   "}
	o, _, _, _ := newTestOrchestrator(c)
	conv := conversation.Seeded(conversation.SystemPrompt)

	res := o.Handle(context.Background(), conv, generation.Request{Kind: generation.KindReply, Text: "hello"})
	assert.Equal(t, generation.StatusFallback, res.Status)
	assert.Equal(t, 1, conv.Len())
}

func TestReplySeedsEmptyConversation(t *testing.T) {
	c := &fakeCompleter{reply: "Hi there."}
	o, _, _, _ := newTestOrchestrator(c)
	conv := conversation.New()

	res := o.Handle(context.Background(), conv, generation.Request{Kind: generation.KindReply, Text: "hello"})
	require.Equal(t, generation.StatusOK, res.Status)
	turns := conv.Snapshot()
	require.Len(t, turns, 3)
	assert.Equal(t, conversation.RoleSystem, turns[0].Role)
}

func TestValidationIsTheOnlyFailure(t *testing.T) {
	c := &fakeCompleter{reply: "unused"}
	o, _, _, _ := newTestOrchestrator(c)
	conv := conversation.Seeded(conversation.SystemPrompt)

	for _, req := range []generation.Request{
		{Kind: generation.KindReply, Text: "  "},
		{Kind: generation.KindSpeech, Text: ""},
		{Kind: "hologram", Text: "hi"},
	} {
		res := o.Handle(context.Background(), conv, req)
		assert.Equal(t, generation.StatusFailed, res.Status, "request %+v", req)
		assert.Equal(t, generation.ErrorKindValidation, res.ErrorKind)
	}
	assert.Zero(t, c.calls)

	res := o.Handle(context.Background(), nil, generation.Request{Kind: generation.KindReply, Text: "hi"})
	assert.Equal(t, generation.StatusFailed, res.Status)
}

func TestHandleIgnoresCallerCancellation(t *testing.T) {
	c := &fakeCompleter{reply: "Still here."}
	o, _, _, _ := newTestOrchestrator(c)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := o.Handle(ctx, conversation.Seeded(conversation.SystemPrompt), generation.Request{Kind: generation.KindReply, Text: "hello"})
	assert.Equal(t, generation.StatusOK, res.Status)
	assert.NoError(t, c.ctxErr)
}

func TestMediaDispatchAndPanicRecovery(t *testing.T) {
	o, speech, avatar, _ := newTestOrchestrator(nil)

	res := o.Handle(context.Background(), nil, generation.Request{Kind: generation.KindSpeech, Text: "hi", VoiceID: "v1"})
	assert.Equal(t, generation.StatusOK, res.Status)
	assert.Equal(t, []string{"v1"}, speech.ids)

	avatar.panic = true
	res = o.Handle(context.Background(), nil, generation.Request{Kind: generation.KindAvatar, Text: "hi", PresenterID: "p1"})
	assert.Equal(t, generation.StatusFallback, res.Status)
	assert.Equal(t, generation.ErrorKindUnavailable, res.ErrorKind)
}

func TestTurnComposesArtifacts(t *testing.T) {
	c := &fakeCompleter{reply: "Let's take a slow breath together."}
	o, speech, avatar, _ := newTestOrchestrator(c)
	conv := conversation.Seeded(conversation.SystemPrompt)

	res := o.Turn(context.Background(), conv, TurnRequest{Text: "I can't sleep", VoiceID: "v1"})
	require.NotNil(t, res.Speech)
	assert.Nil(t, res.Avatar)
	assert.Equal(t, "/speech/v1", res.Speech.ArtifactURL)
	assert.Empty(t, avatar.ids)

	res = o.Turn(context.Background(), conv, TurnRequest{Text: "Still awake", VoiceID: "v1", PresenterID: "p1", Avatar: true})
	require.NotNil(t, res.Avatar)
	assert.Equal(t, generation.StatusOK, res.Avatar.Status)
	assert.Len(t, speech.ids, 2)
	assert.Equal(t, 5, conv.Len())

	res = o.Turn(context.Background(), conv, TurnRequest{Text: " "})
	assert.Equal(t, generation.StatusFailed, res.Reply.Status)
	assert.Nil(t, res.Speech)
}

func TestRunConnectionAnswersInOrder(t *testing.T) {
	c := &fakeCompleter{reply: "I'm listening."}
	o, _, _, _ := newTestOrchestrator(c)
	conv := conversation.Seeded(conversation.SystemPrompt)

	inbound := make(chan any, 4)
	outbound := make(chan any, 16)
	var turns []string
	live := Live{
		SessionID:    "s1",
		VoiceID:      "v1",
		Conversation: conv,
		OnTurn: func(_ context.Context, req TurnRequest, _ TurnResult) {
			turns = append(turns, req.Text)
		},
	}

	inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, Text: "first", Avatar: true}
	inbound <- "garbage"
	inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, Text: "second"}
	close(inbound)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.RunConnection(ctx, live, inbound, outbound))
	close(outbound)

	var types []protocol.MessageType
	for msg := range outbound {
		types = append(types, protocol.TypeOf(msg))
	}
	assert.Equal(t, []protocol.MessageType{
		protocol.TypeSystemEvent,
		protocol.TypeAssistantReply, protocol.TypeAssistantAudio, protocol.TypeAssistantVideo,
		protocol.TypeErrorEvent,
		protocol.TypeAssistantReply, protocol.TypeAssistantAudio,
	}, types)
	assert.Equal(t, []string{"first", "second"}, turns)
	assert.True(t, strings.HasPrefix(conv.Snapshot()[1].Text, "first"))
}
