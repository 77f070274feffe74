package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/internal/http"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

// Static errors for err113 compliance.
var (
	ErrUnexpectedEventsPayload = errors.New("unexpected events payload")
)

// StreamedGetEvent implements pryv.EventStreamer.StreamedGetEvent. The body
// is decoded token by token so events are handed over as they arrive.
func (c *Connection) StreamedGetEvent(ctx context.Context, query url.Values, onEvent func(pryv.Event)) (*pryv.StreamResult, error) {
	resp, err := c.httpClient.DoStream(ctx, &http.Request{
		Method: "GET",
		Path:   constants.EventsPath,
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("streaming events: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	decoder := json.NewDecoder(resp.Body)
	result := &pryv.StreamResult{}

	err = expectDelim(decoder, '{')
	if err != nil {
		return nil, err
	}

	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("reading events payload: %w", err)
		}

		key, _ := keyToken.(string)

		switch key {
		case "events":
			err = decodeEvents(decoder, result, onEvent)
		case "meta":
			err = c.decodeMeta(decoder, unixSeconds(resp.SentAt))
		default:
			var skipped json.RawMessage
			err = decoder.Decode(&skipped)
		}

		if err != nil {
			return nil, fmt.Errorf("reading events payload field %q: %w", key, err)
		}
	}

	err = expectDelim(decoder, '}')
	if err != nil {
		return nil, err
	}

	return result, nil
}

func decodeEvents(decoder *json.Decoder, result *pryv.StreamResult, onEvent func(pryv.Event)) error {
	err := expectDelim(decoder, '[')
	if err != nil {
		return err
	}

	for decoder.More() {
		var event pryv.Event

		err = decoder.Decode(&event)
		if err != nil {
			return fmt.Errorf("decoding event %d: %w", result.EventsCount, err)
		}

		result.EventsCount++

		if onEvent != nil {
			onEvent(event)
		}
	}

	return expectDelim(decoder, ']')
}

func (c *Connection) decodeMeta(decoder *json.Decoder, sentAt float64) error {
	var meta struct {
		ServerTime *float64 `json:"serverTime"`
	}

	err := decoder.Decode(&meta)
	if err != nil {
		return fmt.Errorf("decoding meta: %w", err)
	}

	if meta.ServerTime != nil {
		c.delta.Update(*meta.ServerTime, sentAt)
	}

	return nil
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("reading events payload: %w", err)
	}

	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrUnexpectedEventsPayload, want, token)
	}

	return nil
}
