package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "kgraph-backend/pkg/errors"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// HTTPDirectory is the team-membership directory client. Transient failures
// are retried by the underlying client; a directory that stays down surfaces
// as UNAVAILABLE.
type HTTPDirectory struct {
	baseURL string
	client  *retryablehttp.Client
	logger  *zap.Logger
}

// NewHTTPDirectory creates a new directory client
func NewHTTPDirectory(baseURL string, logger *zap.Logger) *HTTPDirectory {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// TeamForNamespace returns the team id associated with a namespace, or ""
// when the namespace has no team.
func (d *HTTPDirectory) TeamForNamespace(ctx context.Context, namespaceID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/teams?namespace=%s", d.baseURL, url.QueryEscape(namespaceID))

	var payload struct {
		TeamID string `json:"teamId"`
	}
	found, err := d.get(ctx, endpoint, &payload)
	if err != nil || !found {
		return "", err
	}
	return payload.TeamID, nil
}

// Membership returns the member's role within a team, or "" when the
// identity is not a member.
func (d *HTTPDirectory) Membership(ctx context.Context, teamID, identity string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/teams/%s/members/%s",
		d.baseURL, url.PathEscape(teamID), url.PathEscape(identity))

	var payload struct {
		Role string `json:"role"`
	}
	found, err := d.get(ctx, endpoint, &payload)
	if err != nil || !found {
		return "", err
	}
	return payload.Role, nil
}

// get performs a directory lookup. A 404 means "no association", not an
// error.
func (d *HTTPDirectory) get(ctx context.Context, endpoint string, out interface{}) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, apperrors.NewInternalError("failed to build directory request").WithCause(err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("Team directory unreachable", zap.String("endpoint", endpoint), zap.Error(err))
		return false, apperrors.NewUnavailableError("team-directory", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, apperrors.NewUnavailableError("team-directory", err)
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, apperrors.NewUnavailableError("team-directory",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}
