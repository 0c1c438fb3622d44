package display

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lyriscope/internal/services"
)

const pushUserAgent = "lyriscope/0.1.0"

// songState is the JSON body pushed to the visual host for every applied
// line. Field names are part of the receiving end's contract.
type songState struct {
	SongTitle      string `json:"songTitle"`
	OriginalLyric  string `json:"originalLyric"`
	AnalyzedLyric  string `json:"analyzedLyric"`
	LyricImagePath string `json:"lyricImagePath"`
}

// HTTPPushSink POSTs the current song state to a configurable endpoint.
type HTTPPushSink struct {
	endpoint string
	client   *http.Client
}

var _ Sink = (*HTTPPushSink)(nil)

// NewHTTPPushSink builds a push sink for the endpoint.
func NewHTTPPushSink(endpoint string, timeoutSeconds int) (*HTTPPushSink, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "display", "new",
			"http display target requires http_endpoint", nil)
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPushSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (h *HTTPPushSink) Name() string { return TargetHTTP }

// Apply pushes the update as JSON. Non-2xx responses are transient errors;
// the next line produces a fresh push regardless.
func (h *HTTPPushSink) Apply(ctx context.Context, update Update) error {
	body, err := json.Marshal(songState{
		SongTitle:      update.SongTitle,
		OriginalLyric:  update.LyricText,
		AnalyzedLyric:  update.Description,
		LyricImagePath: update.ImagePath,
	})
	if err != nil {
		return services.Wrap(services.ErrPermanent, "display", "push", "marshal song state", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrPermanent, "display", "push", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", pushUserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "display", "push", "post song state", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrTransient, "display", "push",
			fmt.Sprintf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
