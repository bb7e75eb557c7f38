package teiv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiRoot = "/topology-inventory/v1alpha11"

// Client queries the topology and inventory service for radio cells.
type Client struct {
	baseURL       string
	oduFunctionID string
	client        *http.Client
}

// NewClient constructs a TEIV client scoped to one O-DU function.
func NewClient(baseURL, oduFunctionID string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("teiv: empty base url")
	}
	if oduFunctionID == "" {
		return nil, errors.New("teiv: empty odu function id")
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		oduFunctionID: oduFunctionID,
		client:        &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type entitiesResponse struct {
	Items []map[string][]struct {
		ID string `json:"id"`
	} `json:"items"`
}

// NRCellDUs lists the local ids of the NRCellDU entities provided by the
// configured O-DU function.
func (c *Client) NRCellDUs(ctx context.Context) ([]string, error) {
	scope := fmt.Sprintf(`/provided-by-oduFunction[@id=%q]`, c.oduFunctionID)
	query := url.Values{
		"scopeFilter":  {scope},
		"targetFilter": {"/attributes;/sourceIds"},
	}
	endpoint := c.baseURL + apiRoot + "/domains/RAN/entity-types/NRCellDU/entities?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("teiv: http %d", resp.StatusCode)
	}

	var body entitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("teiv: decode: %w", err)
	}
	var ids []string
	for _, item := range body.Items {
		for _, entities := range item {
			for _, entity := range entities {
				if entity.ID == "" {
					continue
				}
				parts := strings.Split(entity.ID, ":")
				ids = append(ids, parts[len(parts)-1])
			}
		}
	}
	return ids, nil
}
