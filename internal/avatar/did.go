package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/reliability"
)

const (
	DIDName = "d-id"

	DefaultDIDBaseURL     = "https://api.d-id.com"
	DefaultDIDPresenterID = "amy-jcwCkr1grs"

	presenterImageURL = "https://create.d-id.com/api/presenters/%s/image"
)

type DIDConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// DIDProvider talks to the D-ID talks API.
type DIDProvider struct {
	cfg    DIDConfig
	client *http.Client
}

func NewDIDProvider(cfg DIDConfig) *DIDProvider {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDIDBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DIDProvider{cfg: cfg, client: client}
}

func (p *DIDProvider) Name() string { return DIDName }

type talkRequest struct {
	Script    talkScript `json:"script"`
	SourceURL string     `json:"source_url"`
}

type talkScript struct {
	Type  string `json:"type"`
	Input string `json:"input"`
}

type talkResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
	Error     *struct {
		Kind        string `json:"kind"`
		Description string `json:"description"`
	} `json:"error"`
}

func (p *DIDProvider) Submit(ctx context.Context, text, presenterID string) (string, error) {
	body, err := json.Marshal(talkRequest{
		Script:    talkScript{Type: "text", Input: text},
		SourceURL: fmt.Sprintf(presenterImageURL, url.PathEscape(presenterID)),
	})
	if err != nil {
		return "", err
	}
	var out talkResponse
	if err := p.do(ctx, http.MethodPost, "/talks", body, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.ID), nil
}

func (p *DIDProvider) Status(ctx context.Context, jobID string) (RemoteStatus, error) {
	var out talkResponse
	if err := p.do(ctx, http.MethodGet, "/talks/"+url.PathEscape(jobID), nil, &out); err != nil {
		return RemoteStatus{}, err
	}
	switch strings.ToLower(strings.TrimSpace(out.Status)) {
	case "done":
		return RemoteStatus{State: RemoteDone, ResultURL: out.ResultURL}, nil
	case "error", "rejected":
		detail := out.Status
		if out.Error != nil && out.Error.Description != "" {
			detail = out.Error.Description
		}
		return RemoteStatus{State: RemoteError, Detail: detail}, nil
	default:
		return RemoteStatus{State: RemotePending}, nil
	}
}

// ListPresenters returns the presenter catalogue.
func (p *DIDProvider) ListPresenters(ctx context.Context) ([]Presenter, error) {
	var out struct {
		Presenters []Presenter `json:"presenters"`
	}
	if err := p.do(ctx, http.MethodGet, "/presenters", nil, &out); err != nil {
		return nil, err
	}
	if out.Presenters == nil {
		return []Presenter{}, nil
	}
	return out.Presenters, nil
}

func (p *DIDProvider) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return p.fail(generation.ErrProviderRequest, 0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+p.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := p.client.Do(req)
	if err != nil {
		return p.fail(reliability.ClassifyTransportError(err), 0, "", err)
	}
	defer res.Body.Close()

	if kind := reliability.ClassifyHTTPStatus(res.StatusCode); kind != nil {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return p.fail(kind, res.StatusCode, strings.TrimSpace(string(detail)), nil)
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(out); err != nil {
		return p.fail(generation.ErrProviderUnavailable, res.StatusCode, "invalid response payload", err)
	}
	return nil
}

func (p *DIDProvider) fail(kind error, status int, detail string, err error) error {
	return &generation.ProviderError{Provider: DIDName, Kind: kind, Status: status, Detail: detail, Err: err}
}
