package jamf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// planTimeLayout is the local-time format the plans API expects.
const planTimeLayout = "2006-01-02T15:04:05"

type planRequest struct {
	Devices []planDevice `json:"devices"`
	Config  planConfig   `json:"config"`
}

type planDevice struct {
	ObjectType string `json:"objectType"`
	DeviceID   string `json:"deviceId"`
}

type planConfig struct {
	UpdateAction              string `json:"updateAction"`
	VersionType               string `json:"versionType"`
	ForceInstallLocalDateTime string `json:"forceInstallLocalDateTime"`
}

// CreateUpdatePlan schedules a download-and-install of the latest
// available OS update for one device at the given local time. One call,
// no retries; the dispatcher owns the retry loop.
func (c *Client) CreateUpdatePlan(ctx context.Context, deviceID int, when time.Time) error {
	op := fmt.Sprintf("create update plan for device %d", deviceID)

	body, err := json.Marshal(planRequest{
		Devices: []planDevice{{
			ObjectType: "COMPUTER",
			DeviceID:   strconv.Itoa(deviceID),
		}},
		Config: planConfig{
			UpdateAction:              "DOWNLOAD_INSTALL_SCHEDULE",
			VersionType:               "LATEST_ANY",
			ForceInstallLocalDateTime: when.Format(planTimeLayout),
		},
	})
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", op, err)
	}

	req, err := c.authedRequest(ctx, http.MethodPost,
		"/api/v1/managed-software-updates/plans", bytes.NewReader(body))
	if err != nil {
		return &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnauthorized:
		return &AuthError{Kind: Unauthorized, Op: op}
	case http.StatusTooManyRequests:
		return &AuthError{Kind: RateLimited, Op: op}
	default:
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
}
