package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"

	evaluatePath = "/evaluate"
	healthPath   = "/health"
)

// Remote talks to the advanced fairness evaluator over HTTP. The evaluator is
// an opaque collaborator: one POST with the evaluation input, one JSON body
// with the metrics back.
type Remote struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

func NewRemote(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Remote {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Remote{
		token:   token,
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (r *Remote) Name() string { return EnginePrimary }

func (r *Remote) Evaluate(ctx context.Context, in *Input) (*Evaluation, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+evaluatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req = r.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	r.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var ev Evaluation
	if err := r.decodeJSON(resp, &ev); err != nil {
		return nil, err
	}
	if ev.Metrics == nil {
		return nil, fmt.Errorf("evaluator response has no metrics")
	}

	ev.Engine = EnginePrimary
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return &ev, nil
}

// Ping is the lightweight reachability probe. One GET, no retries.
func (r *Remote) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+healthPath, nil)
	if err != nil {
		return err
	}
	req = r.setHeaders(req)

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	return nil
}

func (r *Remote) setHeaders(req *http.Request) *http.Request {
	if r.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.token))
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	req.Header.Set("Accept-Encoding", contentEncoding)
	return req
}

func (r *Remote) decodeJSON(resp *http.Response, target any) error {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	}

	return json.NewDecoder(reader).Decode(target)
}
