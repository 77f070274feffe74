package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fivetwenty-io/pryv-client/internal/http"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

// Assets implements pryv.Service.Assets. A platform without
// assets.definitions has no assets: a warning is logged and nil returned.
func (s *Service) Assets(ctx context.Context, forceFetch bool) (pryv.Assets, error) {
	if !forceFetch {
		if assets, ok := s.assets.load(); ok {
			return assets, nil
		}
	}

	info, err := s.Info(ctx, false)
	if err != nil {
		return nil, err
	}

	if info.Assets == nil || info.Assets.Definitions == "" {
		s.logger.Warn("Service info has no assets definitions", map[string]interface{}{
			"name": info.Name,
		})

		return nil, nil
	}

	assets, err := s.assetsLoader.LoadAssets(ctx, info.Assets.Definitions)
	if err != nil {
		return nil, fmt.Errorf("loading assets from %s: %w", info.Assets.Definitions, err)
	}

	s.assets.store(assets)

	return assets, nil
}

// jsonAssetsLoader reads the definitions document as an opaque JSON object.
type jsonAssetsLoader struct {
	httpClient *http.Client
}

func (l *jsonAssetsLoader) LoadAssets(ctx context.Context, definitionsURL string) (pryv.Assets, error) {
	resp, err := l.httpClient.Get(ctx, definitionsURL, nil)
	if err != nil {
		return nil, err
	}

	var assets pryv.Assets

	err = json.Unmarshal(resp.Body, &assets)
	if err != nil {
		return nil, fmt.Errorf("decoding assets definitions: %w", err)
	}

	return assets, nil
}
