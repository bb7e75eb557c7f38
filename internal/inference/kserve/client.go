package kserve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoPredictions is returned when the response carries no predictions.
var ErrNoPredictions = errors.New("kserve: response has no predictions")

const signatureName = "serving_default"

// Client calls the KServe v1 predict endpoint of one model.
type Client struct {
	predictURL string
	host       string
	client     *http.Client
}

// NewClient constructs a predictor client. baseURL is the inference service
// address; the request Host header is taken from it.
func NewClient(baseURL, model string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("kserve: empty base url")
	}
	if model == "" {
		return nil, errors.New("kserve: empty model name")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("kserve: parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("kserve: base url %q has no host", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		predictURL: strings.TrimRight(baseURL, "/") + "/v1/models/" + model + ":predict",
		host:       parsed.Hostname(),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type predictRequest struct {
	SignatureName string        `json:"signature_name"`
	Instances     [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// Predict sends a feature batch and returns one prediction vector per
// instance row.
func (c *Client) Predict(ctx context.Context, instances [][][]float64) ([][]float64, error) {
	payload, err := json.Marshal(predictRequest{SignatureName: signatureName, Instances: instances})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Host = c.host

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kserve: http %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("kserve: decode: %w", err)
	}
	if len(out.Predictions) == 0 {
		return nil, ErrNoPredictions
	}
	return out.Predictions, nil
}
