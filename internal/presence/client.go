package presence

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"chatmesh/internal/config"
	"chatmesh/internal/models"
)

// HTTPClient calls a remote node's Presence Registry over HTTP. It is
// used by deployments where the registry is not in-process; per
// spec, a lookup failure degrades to an empty node map rather than
// propagating an error, so the Publisher always has a usable (if
// possibly stale) answer.
type HTTPClient struct {
	client *resty.Client
}

func NewHTTPClient(cfg config.PresenceConfig) *HTTPClient {
	client := resty.New()
	client.SetBaseURL(cfg.ServiceURL)
	client.SetTimeout(time.Duration(cfg.TimeoutMS) * time.Millisecond)
	client.SetHeader("Content-Type", "application/json")
	return &HTTPClient{client: client}
}

// GetNodeMap resolves the given users' online devices to serving nodes,
// excluding (sender, originDevice) when both are provided. On any
// transport or decode failure it logs and returns an empty map instead of
// an error, matching the presence-transient propagation policy (empty
// node map → push fallback).
func (h *HTTPClient) GetNodeMap(ctx context.Context, userIDs []uuid.UUID, sender, originDevice *uuid.UUID) map[string][]models.DeviceRef {
	if len(userIDs) == 0 {
		return map[string][]models.DeviceRef{}
	}

	params := url.Values{}
	for _, id := range userIDs {
		params.Add("user_id", id.String())
	}
	if sender != nil {
		params.Set("sender_id", sender.String())
	}
	if originDevice != nil {
		params.Set("origin_device_id", originDevice.String())
	}

	var nodeMap map[string][]models.DeviceRef
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&nodeMap).
		Get("/presence/nodes")

	if err != nil || resp.IsError() {
		slog.Warn("presence registry lookup failed, falling back to empty node map",
			"error", err, "status", respStatus(resp))
		return map[string][]models.DeviceRef{}
	}
	if nodeMap == nil {
		return map[string][]models.DeviceRef{}
	}
	return nodeMap
}

func respStatus(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}
