package sme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"oran-rapps/internal/observability/logging"
)

var errNoService = errors.New("sme: no service description")

// Client resolves service base URLs through the CAPIF discovery API.
type Client struct {
	endpoint  string
	invokerID string
	client    *http.Client
	logger    *zap.SugaredLogger
}

// NewClient constructs a discovery client.
func NewClient(endpoint, invokerID string, logger *zap.SugaredLogger) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("sme: empty discovery endpoint")
	}
	if invokerID == "" {
		return nil, errors.New("sme: empty invoker id")
	}
	return &Client{
		endpoint:  endpoint,
		invokerID: invokerID,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logging.OrNop(logger),
	}, nil
}

type discoveredAPIs struct {
	ServiceAPIDescriptions []struct {
		AEFProfiles []struct {
			Versions []struct {
				Resources []struct {
					ResourceName string `json:"resourceName"`
					URI          string `json:"uri"`
				} `json:"resources"`
			} `json:"versions"`
			InterfaceDescriptions []struct {
				IPv4Addr string `json:"ipv4Addr"`
				Port     int    `json:"port"`
			} `json:"interfaceDescriptions"`
		} `json:"aefProfiles"`
	} `json:"serviceAPIDescriptions"`
}

// Target names a published API resource. An empty InvokerID falls back to
// the client default.
type Target struct {
	InvokerID    string
	APIName      string
	ResourceName string
}

// Discover returns the URL of the target resource. Any failure is reported
// as ok == false.
func (c *Client) Discover(ctx context.Context, target Target) (string, bool) {
	serviceURL, err := c.discover(ctx, target)
	if err != nil {
		c.logger.Warnw("service discovery failed", "api", target.APIName, "resource", target.ResourceName, "err", err)
		return "", false
	}
	c.logger.Infow("service discovered", "api", target.APIName, "resource", target.ResourceName, "url", serviceURL)
	return serviceURL, true
}

func (c *Client) discover(ctx context.Context, target Target) (string, error) {
	if target.APIName == "" {
		return "", errors.New("sme: empty api name")
	}
	invokerID := target.InvokerID
	if invokerID == "" {
		invokerID = c.invokerID
	}
	query := url.Values{}
	query.Set("api-invoker-id", "api_invoker_id_"+invokerID)
	query.Set("api-name", target.APIName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sme: http %d", resp.StatusCode)
	}

	var body discoveredAPIs
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("sme: decode: %w", err)
	}
	return resolveURL(body, target.ResourceName)
}

func resolveURL(body discoveredAPIs, resourceName string) (string, error) {
	if len(body.ServiceAPIDescriptions) == 0 || len(body.ServiceAPIDescriptions[0].AEFProfiles) == 0 {
		return "", errNoService
	}
	profile := body.ServiceAPIDescriptions[0].AEFProfiles[0]
	if len(profile.InterfaceDescriptions) == 0 {
		return "", errors.New("sme: no interface description")
	}
	iface := profile.InterfaceDescriptions[0]
	if iface.IPv4Addr == "" || iface.Port == 0 {
		return "", errors.New("sme: incomplete interface description")
	}

	var uri string
	if len(profile.Versions) > 0 {
		for _, resource := range profile.Versions[0].Resources {
			if resource.ResourceName == resourceName {
				uri = resource.URI
				break
			}
		}
	}
	return fmt.Sprintf("http://%s:%d%s", iface.IPv4Addr, iface.Port, uri), nil
}
