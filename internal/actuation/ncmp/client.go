package ncmp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"oran-rapps/internal/actuation"
	"oran-rapps/internal/observability/logging"
)

// AdministrativeState is the 3GPP administrative state of a cell.
type AdministrativeState string

const (
	Unlocked AdministrativeState = "UNLOCKED"
	Locked   AdministrativeState = "LOCKED"
)

// Client changes cell administrative state through the NCMP passthrough
// datastore. In dry-run mode requests are logged and never sent.
type Client struct {
	endpoint string
	dryRun   bool
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewClient constructs an NCMP client. endpoint may be empty only in dry-run.
func NewClient(endpoint string, dryRun bool, logger *zap.SugaredLogger) (*Client, error) {
	if endpoint == "" && !dryRun {
		return nil, errors.New("ncmp: empty endpoint")
	}
	return &Client{
		endpoint: endpoint,
		dryRun:   dryRun,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logging.OrNop(logger),
	}, nil
}

type patchBody struct {
	Attributes struct {
		AdministrativeState AdministrativeState `json:"administrativeState"`
	} `json:"attributes"`
}

// SetAdministrativeState patches the administrative state of resourceID.
func (c *Client) SetAdministrativeState(ctx context.Context, resourceID string, state AdministrativeState) error {
	if resourceID == "" {
		return errors.New("ncmp: empty resource identifier")
	}
	if state != Locked && state != Unlocked {
		return errors.New("ncmp: invalid administrative state")
	}
	if c.dryRun {
		c.logger.Infow("ncmp dry-run", "resource", resourceID, "administrative_state", state)
		return nil
	}

	var body patchBody
	body.Attributes.AdministrativeState = state
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	target := c.endpoint + "?" + url.Values{"resourceIdentifier": {resourceID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return actuation.CheckStatus("ncmp", resp.StatusCode)
}
