package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/solace/internal/protocol"
)

type options struct {
	baseURL        string
	userID         string
	turns          int
	avatar         bool
	fetch          bool
	startDelay     time.Duration
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

type createSessionRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type wsEnvelope struct {
	Type      string `json:"type"`
	TurnID    string `json:"turn_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	Status    string `json:"status,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// turnSample is what one replayed turn measured.
type turnSample struct {
	Reply       time.Duration
	Audio       time.Duration
	Video       time.Duration
	ReplyStatus string
	AudioStatus string
	VideoStatus string
	AudioURL    string
	VideoURL    string
}

var defaultUtterances = []string{
	"I have three exams next week and I can't sleep.",
	"My roommate and I keep arguing about small things.",
	"I feel like I'm falling behind everyone else.",
	"Some days I don't want to get out of bed.",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "solaceprobe: %v\n", err)
		os.Exit(2)
	}
	samples, err := run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "solaceprobe: %v\n", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, summarize(samples))
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var startDelayMS int
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8000", "solace base URL")
	flag.StringVar(&cfg.userID, "user-id", "probe", "user_id used for the synthetic session")
	flag.IntVar(&cfg.turns, "turns", 4, "number of turns to replay")
	flag.BoolVar(&cfg.avatar, "avatar", false, "request a video artifact on every turn")
	flag.BoolVar(&cfg.fetch, "fetch", true, "download each returned artifact URL")
	flag.IntVar(&startDelayMS, "start-delay-ms", 200, "delay before the first turn in milliseconds")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 120000, "timeout waiting for all artifacts of a turn in milliseconds")
	flag.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	return normalizeOptions(cfg, textsRaw, startDelayMS, interTurnMS, turnTimeoutMS)
}

func normalizeOptions(cfg options, textsRaw string, startDelayMS, interTurnMS, turnTimeoutMS int) (options, error) {
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if startDelayMS < 0 {
		startDelayMS = 0
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.startDelay = time.Duration(startDelayMS) * time.Millisecond
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
		return cfg, nil
	}
	for _, part := range strings.Split(textsRaw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			cfg.texts = append(cfg.texts, t)
		}
	}
	if len(cfg.texts) == 0 {
		return options{}, fmt.Errorf("texts produced no non-empty utterances")
	}
	return cfg, nil
}

func run(cfg options) ([]turnSample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 45 * time.Second}
	sessionID, err := createSession(ctx, httpClient, cfg)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = endSession(context.Background(), httpClient, cfg.baseURL, sessionID)
	}()

	if cfg.verbose {
		fmt.Printf("solaceprobe: session=%s turns=%d avatar=%t\n", sessionID, cfg.turns, cfg.avatar)
	}

	wsURL, err := wsURLForSession(cfg.baseURL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	if cfg.startDelay > 0 {
		time.Sleep(cfg.startDelay)
	}

	events := make(chan wsEnvelope, 32)
	readErrCh := make(chan error, 1)
	go readLoop(conn, events, readErrCh, cfg.verbose)

	samples := make([]turnSample, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		if cfg.verbose {
			fmt.Printf("solaceprobe: turn %d/%d text=%q\n", i+1, cfg.turns, text)
		}
		started := time.Now()
		if err := conn.WriteJSON(protocol.UserMessage{Type: protocol.TypeUserMessage, Text: text, Avatar: cfg.avatar}); err != nil {
			return samples, fmt.Errorf("turn %d send: %w", i+1, err)
		}
		sample, err := awaitTurn(events, readErrCh, started, cfg.avatar, cfg.turnTimeout)
		if err != nil {
			return samples, fmt.Errorf("turn %d: %w", i+1, err)
		}
		if cfg.fetch {
			for _, u := range []string{sample.AudioURL, sample.VideoURL} {
				if err := fetchArtifact(ctx, httpClient, cfg.baseURL, u); err != nil {
					return samples, fmt.Errorf("turn %d fetch %s: %w", i+1, u, err)
				}
			}
		}
		samples = append(samples, sample)
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	if cfg.verbose {
		fmt.Println("solaceprobe: replay completed")
	}
	return samples, nil
}

func createSession(ctx context.Context, client *http.Client, cfg options) (string, error) {
	payload, err := json.Marshal(createSessionRequest{UserID: cfg.userID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out createSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", fmt.Errorf("missing session_id in response")
	}
	return out.SessionID, nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/sessions/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

// fetchArtifact downloads an artifact URL, resolving relative URLs against
// baseURL. Empty URLs are skipped.
func fetchArtifact(ctx context.Context, client *http.Client, baseURL, artifactURL string) error {
	if artifactURL == "" {
		return nil
	}
	if strings.HasPrefix(artifactURL, "/") {
		artifactURL = baseURL + artifactURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	n, _ := io.Copy(io.Discard, io.LimitReader(res.Body, 64<<20))
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", res.StatusCode)
	}
	if n == 0 {
		return fmt.Errorf("empty artifact")
	}
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/sessions/" + url.PathEscape(sessionID) + "/ws"
	return u.String(), nil
}

func readLoop(conn *websocket.Conn, events chan<- wsEnvelope, readErrCh chan<- error, verbose bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErrCh <- err:
			default:
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type == string(protocol.TypeErrorEvent) && verbose {
			fmt.Fprintf(os.Stderr, "solaceprobe: error_event code=%s detail=%s\n", env.Code, env.Detail)
		}
		events <- env
	}
}

// awaitTurn collects the reply and artifact events of one turn.
func awaitTurn(events <-chan wsEnvelope, readErrCh <-chan error, started time.Time, wantVideo bool, timeout time.Duration) (turnSample, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var s turnSample
	for {
		if s.ReplyStatus != "" && s.AudioStatus != "" && (!wantVideo || s.VideoStatus != "") {
			return s, nil
		}
		select {
		case env := <-events:
			elapsed := time.Since(started)
			switch protocol.MessageType(env.Type) {
			case protocol.TypeAssistantReply:
				s.Reply, s.ReplyStatus = elapsed, env.Status
			case protocol.TypeAssistantAudio:
				s.Audio, s.AudioStatus, s.AudioURL = elapsed, env.Status, env.URL
			case protocol.TypeAssistantVideo:
				s.Video, s.VideoStatus, s.VideoURL = elapsed, env.Status, env.URL
			case protocol.TypeErrorEvent:
				return s, fmt.Errorf("error_event %s: %s", env.Code, env.Detail)
			}
		case err := <-readErrCh:
			return s, err
		case <-timer.C:
			return s, fmt.Errorf("timeout after %s", timeout)
		}
	}
}

type seriesSummary struct {
	Name      string
	Samples   int
	P50       time.Duration
	P95       time.Duration
	Fallbacks int
}

func summarize(samples []turnSample) []seriesSummary {
	series := []struct {
		name   string
		pick   func(turnSample) (time.Duration, string)
		active bool
	}{
		{"reply", func(s turnSample) (time.Duration, string) { return s.Reply, s.ReplyStatus }, true},
		{"audio", func(s turnSample) (time.Duration, string) { return s.Audio, s.AudioStatus }, true},
		{"video", func(s turnSample) (time.Duration, string) { return s.Video, s.VideoStatus }, false},
	}

	out := make([]seriesSummary, 0, len(series))
	for _, def := range series {
		var values []time.Duration
		fallbacks := 0
		for _, s := range samples {
			d, status := def.pick(s)
			if status == "" {
				continue
			}
			values = append(values, d)
			if status != "ok" {
				fallbacks++
			}
		}
		if len(values) == 0 && !def.active {
			continue
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		out = append(out, seriesSummary{
			Name:      def.name,
			Samples:   len(values),
			P50:       percentile(values, 0.50),
			P95:       percentile(values, 0.95),
			Fallbacks: fallbacks,
		})
	}
	return out
}

// percentile uses nearest-rank on an ascending slice.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printSummary(w io.Writer, rows []seriesSummary) {
	fmt.Fprintf(w, "%-6s %8s %10s %10s %10s\n", "series", "samples", "p50", "p95", "fallbacks")
	for _, r := range rows {
		fmt.Fprintf(w, "%-6s %8d %10s %10s %10d\n", r.Name, r.Samples, r.P50.Round(time.Millisecond), r.P95.Round(time.Millisecond), r.Fallbacks)
	}
}
