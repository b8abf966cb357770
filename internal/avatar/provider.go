// Package avatar is the video provider client. Talking-avatar generation is
// asynchronous on the provider side, so each call drives a small job state
// machine: submit, poll on a fixed interval, and give up after a bounded
// number of attempts.
package avatar

import "context"

// RemoteState is the provider-reported progress of a job.
type RemoteState string

const (
	RemotePending RemoteState = "pending"
	RemoteDone    RemoteState = "done"
	RemoteError   RemoteState = "error"
)

type RemoteStatus struct {
	State     RemoteState
	ResultURL string
	Detail    string
}

// VideoProvider creates and inspects remote video jobs. Errors should be
// *generation.ProviderError values.
type VideoProvider interface {
	Name() string
	Submit(ctx context.Context, text, presenterID string) (string, error)
	Status(ctx context.Context, jobID string) (RemoteStatus, error)
}

type Presenter struct {
	PresenterID  string `json:"presenter_id"`
	Name         string `json:"name,omitempty"`
	Gender       string `json:"gender,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// PresenterLister is implemented by providers with a presenter catalogue.
type PresenterLister interface {
	ListPresenters(ctx context.Context) ([]Presenter, error)
}
