package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/fivetwenty-io/pryv-client/internal/auth"
	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/internal/http"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

// Connection implements pryv.Connection.
type Connection struct {
	httpClient *http.Client
	endpoint   pryv.APIEndpoint
	delta      *pryv.DeltaEstimator
	chunkSize  atomic.Int64
	logger     pryv.Logger
}

// NewConnection creates a connection for config.APIEndpoint. config.Token,
// when set, replaces the token embedded in the endpoint.
func NewConnection(config *pryv.Config) (*Connection, error) {
	if config == nil {
		return nil, pryv.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, pryv.ErrAPIEndpointRequired
	}

	endpoint, err := pryv.ParseAPIEndpoint(config.APIEndpoint)
	if err != nil {
		return nil, err
	}

	if config.Token != "" {
		endpoint.Token = config.Token
	}

	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = constants.DefaultChunkSize
	}

	if chunkSize < 0 {
		return nil, fmt.Errorf("%w: %d", pryv.ErrInvalidChunkSize, chunkSize)
	}

	var tokenManager auth.TokenManager
	if endpoint.Token != "" {
		tokenManager = auth.NewStaticTokenManager(endpoint.Token)
	}

	conn := &Connection{
		httpClient: http.NewClient(endpoint.Endpoint, tokenManager, createHTTPClientOptions(&config.TransportConfig)...),
		endpoint:   *endpoint,
		delta:      pryv.NewDeltaEstimator(),
		logger:     loggerOrNop(config.Logger),
	}
	conn.chunkSize.Store(int64(chunkSize))

	return conn, nil
}

// Get implements pryv.MetaClient.Get.
func (c *Connection) Get(ctx context.Context, path string, query url.Values) (map[string]interface{}, error) {
	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", path, err)
	}

	return c.withMeta(resp)
}

// Post implements pryv.MetaClient.Post.
func (c *Connection) Post(ctx context.Context, path string, body interface{}, query url.Values) (map[string]interface{}, error) {
	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method: "POST",
		Path:   path,
		Query:  query,
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", displayPath(path), err)
	}

	return c.withMeta(resp)
}

// GetRaw implements pryv.RawClient.GetRaw.
func (c *Connection) GetRaw(ctx context.Context, path string, query url.Values) (*pryv.RawResponse, error) {
	resp, err := c.httpClient.Get(ctx, path, query)

	return rawResponse(resp, err)
}

// PostRaw implements pryv.RawClient.PostRaw.
func (c *Connection) PostRaw(ctx context.Context, path string, body interface{}, query url.Values) (*pryv.RawResponse, error) {
	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method: "POST",
		Path:   path,
		Query:  query,
		Body:   body,
	})

	return rawResponse(resp, err)
}

// DeltaTime implements pryv.Connection.DeltaTime.
func (c *Connection) DeltaTime() float64 {
	return c.delta.Current()
}

// APIEndpoint implements pryv.Connection.APIEndpoint.
func (c *Connection) APIEndpoint() string {
	return c.endpoint.String()
}

// Endpoint implements pryv.Connection.Endpoint.
func (c *Connection) Endpoint() *pryv.APIEndpoint {
	endpoint := c.endpoint

	return &endpoint
}

// ChunkSize implements pryv.BatchClient.ChunkSize.
func (c *Connection) ChunkSize() int {
	return int(c.chunkSize.Load())
}

// SetChunkSize implements pryv.BatchClient.SetChunkSize.
func (c *Connection) SetChunkSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", pryv.ErrInvalidChunkSize, size)
	}

	c.chunkSize.Store(int64(size))

	return nil
}

// withMeta decodes the body and folds meta.serverTime into the delta
// estimate. The estimate is left untouched when meta is missing.
func (c *Connection) withMeta(resp *http.Response) (map[string]interface{}, error) {
	var body map[string]interface{}

	err := json.Unmarshal(resp.Body, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding body: %w", pryv.ErrMissingMeta, err)
	}

	serverTime, ok := serverTimeOf(body)
	if !ok {
		return nil, pryv.ErrMissingMeta
	}

	c.delta.Update(serverTime, unixSeconds(resp.SentAt))

	return body, nil
}

func serverTimeOf(body map[string]interface{}) (float64, bool) {
	meta, ok := body["meta"].(map[string]interface{})
	if !ok {
		return 0, false
	}

	serverTime, ok := meta["serverTime"].(float64)

	return serverTime, ok
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// rawResponse returns error statuses as plain responses. Failures without a
// response, or raised by response interceptors, stay errors.
func rawResponse(resp *http.Response, err error) (*pryv.RawResponse, error) {
	if err != nil && (resp == nil || !http.IsStatusError(err)) {
		return nil, err
	}

	return &pryv.RawResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, nil
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}

	return path
}
