package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

// API implements pryv.BatchClient.API. Chunks are posted one after the other
// to the endpoint root; the first failing chunk aborts the whole call.
func (c *Connection) API(ctx context.Context, calls []pryv.MethodCall) ([]interface{}, error) {
	chunkSize := c.ChunkSize()
	results := make([]interface{}, 0, len(calls))

	for start := 0; start < len(calls); start += chunkSize {
		end := min(start+chunkSize, len(calls))
		chunk := calls[start:end]

		body, err := c.Post(ctx, "", chunk, nil)
		if err != nil {
			return nil, fmt.Errorf("batch calls %d to %d: %w", start, end-1, err)
		}

		chunkResults, ok := body["results"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: calls %d to %d: response has no results", pryv.ErrResultCountMismatch, start, end-1)
		}

		if len(chunkResults) != len(chunk) {
			return nil, fmt.Errorf("%w: calls %d to %d: sent %d, got %d",
				pryv.ErrResultCountMismatch, start, end-1, len(chunk), len(chunkResults))
		}

		results = append(results, chunkResults...)

		c.logger.Debug("Batch chunk sent", map[string]interface{}{
			"from":  start,
			"to":    end - 1,
			"total": len(calls),
		})
	}

	return results, nil
}
