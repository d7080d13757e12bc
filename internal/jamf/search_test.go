package jamf_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot/patchpilot/internal/jamf"
	"github.com/patchpilot/patchpilot/internal/jamf/jamftest"
)

const searchPayload = `{
	"advanced_computer_search": {
		"id": 113,
		"name": "All Managed Laptops",
		"computers": [
			{
				"id": 42,
				"name": "mbp-jdoe",
				"Serial_Number": "C02XL0AAJGH5",
				"Email_Address": "jdoe@example.com",
				"Operating_System_Version": "15.2.1",
				"Last_Check_in": "2026-08-20 09:15:00",
				"Model": "MacBook Pro (14-inch, 2023)"
			}
		]
	}
}`

func TestClient_FetchSearch(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{
		Searches: map[string][]byte{"113": []byte(searchPayload)},
	})
	defer server.Close()

	client := newClient(server.URL)
	require.NoError(t, client.AcquireToken(context.Background()))

	payload, err := client.FetchSearch(context.Background(), "113")
	require.NoError(t, err)
	assert.JSONEq(t, searchPayload, string(payload))
}

func TestClient_FetchSearch_StaleToken(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{
		Searches: map[string][]byte{"113": []byte(searchPayload)},
	})
	defer server.Close()

	client := newClient(server.URL)
	require.NoError(t, client.AcquireToken(context.Background()))
	server.RevokeToken()

	_, err := client.FetchSearch(context.Background(), "113")
	assert.True(t, jamf.IsAuthKind(err, jamf.Unauthorized))
}

func TestClient_FetchSearch_UnknownSearch(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{})
	defer server.Close()

	client := newClient(server.URL)
	require.NoError(t, client.AcquireToken(context.Background()))

	_, err := client.FetchSearch(context.Background(), "999")
	assert.True(t, jamf.IsAuthKind(err, jamf.ConnectionFailed))
}

func TestClient_ListSearches(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{
		Searches: map[string][]byte{"113": []byte(searchPayload)},
	})
	defer server.Close()

	client := newClient(server.URL)
	require.NoError(t, client.AcquireToken(context.Background()))

	refs, err := client.ListSearches(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, 113, refs[0].ID)
}
