package pryv_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

const serviceInfoJSON = `{
  "register": "https://reg.pryv.me",
  "access": "https://access.pryv.me/access",
  "api": "https://{username}.pryv.me/",
  "name": "Pryv Lab",
  "home": "https://www.pryv.com",
  "support": "https://pryv.com/helpdesk",
  "terms": "https://pryv.com/pryv-lab-terms-of-use/",
  "eventTypes": "https://api.pryv.com/event-types/flat.json",
  "assets": {"definitions": "https://pryv.github.io/assets-pryv.me/index.json"},
  "version": "1.9.0",
  "features": {"noHF": true}
}`

func TestServiceInfo_JSON(t *testing.T) {
	t.Parallel()

	var info pryv.ServiceInfo

	require.NoError(t, json.Unmarshal([]byte(serviceInfoJSON), &info))
	assert.Equal(t, "Pryv Lab", info.Name)
	assert.Equal(t, "https://{username}.pryv.me/", info.API)
	assert.Equal(t, "https://api.pryv.com/event-types/flat.json", info.EventTypes)
	assert.Equal(t, "https://pryv.github.io/assets-pryv.me/index.json", info.Assets.Definitions)
	assert.Equal(t, "1.9.0", info.Extra["version"])
	assert.Equal(t, map[string]interface{}{"noHF": true}, info.Extra["features"])
	assert.NotContains(t, info.Extra, "name")

	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, serviceInfoJSON, string(data))
}

func TestServiceInfo_Merge(t *testing.T) {
	t.Parallel()

	base := &pryv.ServiceInfo{
		Name:     "Base",
		API:      "https://{username}.base.com/",
		Register: "https://reg.base.com/",
		Assets:   &pryv.AssetsRef{Definitions: "https://assets.base.com/index.json"},
	}

	merged := base.Merge(&pryv.ServiceInfo{
		Name:   "Custom",
		Assets: &pryv.AssetsRef{Definitions: "https://assets.custom.com/index.json"},
		Extra:  map[string]interface{}{"theme": "dark"},
	})

	assert.Equal(t, "Custom", merged.Name)
	assert.Equal(t, "https://{username}.base.com/", merged.API)
	assert.Equal(t, "https://assets.custom.com/index.json", merged.Assets.Definitions)
	assert.Equal(t, "dark", merged.Extra["theme"])

	// base is untouched
	assert.Equal(t, "Base", base.Name)
	assert.Equal(t, "https://assets.base.com/index.json", base.Assets.Definitions)
	assert.Nil(t, base.Extra)

	assert.Equal(t, base, base.Merge(nil))
}

func TestServiceInfo_ValidateAndNormalize(t *testing.T) {
	t.Parallel()

	info := &pryv.ServiceInfo{API: "https://{username}.pryv.me", Access: "https://access.pryv.me/access"}
	require.ErrorIs(t, info.Validate(), pryv.ErrInvalidServiceInfo)

	info.Name = "Lab"
	require.NoError(t, info.Validate())

	info.Normalize()
	assert.Equal(t, "https://{username}.pryv.me/", info.API)
	assert.Equal(t, "https://access.pryv.me/access/", info.Access)
	assert.Empty(t, info.Register)
}

func TestServiceInfo_APIEndpointFor(t *testing.T) {
	t.Parallel()

	info := &pryv.ServiceInfo{Name: "Lab", API: "https://{username}.pryv.me/"}

	endpoint, err := info.APIEndpointFor("tom", "abc")
	require.NoError(t, err)
	assert.Equal(t, &pryv.APIEndpoint{Endpoint: "https://tom.pryv.me/", Token: "abc"}, endpoint)

	pathStyle := &pryv.ServiceInfo{Name: "Lab", API: "https://api.example.com/{username}/"}

	endpoint, err = pathStyle.APIEndpointFor("tom", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/tom/", endpoint.String())

	_, err = (&pryv.ServiceInfo{Name: "Lab"}).APIEndpointFor("tom", "abc")
	require.ErrorIs(t, err, pryv.ErrInvalidServiceInfo)
}

func TestMethodCall_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal([]pryv.MethodCall{
		{Method: "streams.get"},
		{Method: "events.get", Params: map[string]interface{}{"limit": 1}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"method":"streams.get","params":{}},{"method":"events.get","params":{"limit":1}}]`, string(data))
}

func TestRawResponse_JSON(t *testing.T) {
	t.Parallel()

	resp := &pryv.RawResponse{StatusCode: 200, Body: []byte(`{"a":1}`)}

	var body map[string]int

	require.NoError(t, resp.JSON(&body))
	assert.Equal(t, 1, body["a"])

	require.Error(t, (&pryv.RawResponse{Body: []byte("nope")}).JSON(&body))
}
