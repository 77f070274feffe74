// Package client implements pryv.Connection and pryv.Service on top of the
// internal HTTP transport.
package client

import (
	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/internal/http"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *pryv.TransportConfig) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPClient != nil {
		httpOpts = append(httpOpts, http.WithHTTPClient(config.HTTPClient))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.EnableHTTP2 {
		httpOpts = append(httpOpts, http.WithHTTP2(true))
	}

	if chain := interceptorsFor(config); chain != nil {
		httpOpts = append(httpOpts, http.WithInterceptors(chain))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// interceptorsFor places the breaker ahead of the caller's interceptors and
// the call recorder after them.
func interceptorsFor(config *pryv.TransportConfig) *pryv.InterceptorChain {
	if config.Breaker == nil && config.Calls == nil {
		return config.Interceptors
	}

	front := pryv.NewInterceptorChain()
	if config.Breaker != nil {
		config.Breaker.Install(front)
	}

	back := pryv.NewInterceptorChain()
	if config.Calls != nil {
		config.Calls.Install(back)
	}

	return pryv.JoinInterceptorChains(front, config.Interceptors, back)
}

// loggerAdapter adapts pryv.Logger to http.Logger.
type loggerAdapter struct {
	logger pryv.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}

func loggerOrNop(logger pryv.Logger) pryv.Logger {
	if logger == nil {
		return nopLogger{}
	}

	return logger
}
