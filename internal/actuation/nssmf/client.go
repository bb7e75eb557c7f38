package nssmf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"oran-rapps/internal/actuation"
)

// PRBKey is the RAN slice subnet profile attribute resized by the rApp.
const PRBKey = "RRU.PrbDl"

// profile spellings seen in ProvMnS responses
var profileKeys = []string{"RANSliceSubnetProfile", "ransliceSubnetProfile"}

// ErrNoPRB is returned when a subnet document carries no RRU.PrbDl value.
var ErrNoPRB = errors.New("nssmf: subnet has no RRU.PrbDl")

// Subnet is a NetworkSliceSubnet document. Unknown fields are kept so a
// modification writes back what was read.
type Subnet struct {
	ID  string
	doc map[string]any
}

// Client talks to the RAN NSSMF ProvMnS and FileDataReportingMnS APIs.
type Client struct {
	baseURL string
	version string
	client  *http.Client
}

// NewClient constructs an NSSMF client.
func NewClient(baseURL, version string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("nssmf: empty base url")
	}
	if version == "" {
		version = "v1"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *Client) subnetPath(id string) string {
	return fmt.Sprintf("/3GPPManagement/ProvMnS/%s/NetworkSliceSubnets/%s", c.version, url.PathEscape(id))
}

// GetSubnet fetches a network slice subnet. A missing subnet yields an error
// wrapping actuation.ErrNotFound.
func (c *Client) GetSubnet(ctx context.Context, id string) (Subnet, error) {
	if id == "" {
		return Subnet{}, errors.New("nssmf: empty subnet id")
	}
	var doc map[string]any
	if _, err := c.doJSON(ctx, http.MethodGet, c.subnetPath(id), nil, &doc); err != nil {
		return Subnet{}, err
	}
	if doc == nil {
		return Subnet{}, errors.New("nssmf: empty subnet document")
	}
	return Subnet{ID: id, doc: doc}, nil
}

// CurrentPRB returns the RRU.PrbDl of the first slice profile.
func (s Subnet) CurrentPRB() (int, error) {
	profile, _ := s.ranProfile()
	if profile == nil {
		return 0, ErrNoPRB
	}
	switch v := profile[PRBKey].(type) {
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Float64()
		return int(n), err
	}
	return 0, ErrNoPRB
}

func (s Subnet) ranProfile() (map[string]any, string) {
	attrs, _ := s.doc["attributes"].(map[string]any)
	profiles, _ := attrs["sliceProfileList"].([]any)
	if len(profiles) == 0 {
		return nil, ""
	}
	first, _ := profiles[0].(map[string]any)
	for _, key := range profileKeys {
		if profile, ok := first[key].(map[string]any); ok {
			return profile, key
		}
	}
	return nil, ""
}

// withPRB returns a copy of the document with only RRU.PrbDl replaced.
func (s Subnet) withPRB(prb int) (map[string]any, error) {
	raw, err := json.Marshal(s.doc)
	if err != nil {
		return nil, err
	}
	var clone map[string]any
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}
	copied := Subnet{ID: s.ID, doc: clone}
	profile, _ := copied.ranProfile()
	if profile == nil {
		return nil, ErrNoPRB
	}
	profile[PRBKey] = prb
	return clone, nil
}

// ModifyPRB writes the subnet back with RRU.PrbDl set to prb.
func (c *Client) ModifyPRB(ctx context.Context, subnet Subnet, prb int) error {
	if subnet.ID == "" {
		return errors.New("nssmf: empty subnet id")
	}
	body, err := subnet.withPRB(prb)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, http.MethodPut, c.subnetPath(subnet.ID), body, nil)
	return err
}

// Subscribe registers callbackURI for file-ready notifications and returns
// the subscription location.
func (c *Client) Subscribe(ctx context.Context, callbackURI string) (string, error) {
	if callbackURI == "" {
		return "", errors.New("nssmf: empty callback uri")
	}
	path := fmt.Sprintf("/3GPPManagement/FileDataReportingMnS/%s/subscriptions", c.version)
	resp, err := c.doJSON(ctx, http.MethodPost, path, SubscriptionRequest{ConsumerReference: callbackURI}, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", &actuation.StatusError{Service: "nssmf", Code: resp.StatusCode}
	}
	return resp.Header.Get("Location"), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) (*http.Response, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := actuation.CheckStatus("nssmf", resp.StatusCode); err != nil {
		return resp, err
	}
	if out == nil {
		return resp, nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return resp, fmt.Errorf("nssmf: decode: %w", err)
	}
	return resp, nil
}
