package common

import (
	"github.com/futig/sla-consultant/internal/config"
	pkgHTTP "github.com/futig/sla-consultant/pkg/http"
	"go.uber.org/zap"
)

const userAgentPrefix = "sla-consultant/"

// NewBaseConnector builds a connector for a remote service. Extra options
// are applied before tracing so spans cover them.
func NewBaseConnector(cfg config.HTTPClientConfig, service string, logger *zap.Logger, extra ...pkgHTTP.HttpOpts) *pkgHTTP.Connector {
	connCfg := &pkgHTTP.ConnectorConfig{
		Logger:  logger,
		BaseURL: cfg.Url,
	}

	opts := []pkgHTTP.HttpOpts{
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithRequestLogging(),
		pkgHTTP.WithAuthToken(cfg.Token),
		pkgHTTP.WithUserAgent(userAgentPrefix + service),
	}
	opts = append(opts, extra...)
	opts = append(opts, pkgHTTP.WithTracing(service))

	return pkgHTTP.NewConnector(connCfg, opts...)
}

// BreakerOption maps the breaker section of a service config
func BreakerOption(name string, cfg config.BreakerConfig, logger *zap.Logger) pkgHTTP.HttpOpts {
	return pkgHTTP.WithCircuitBreaker(pkgHTTP.BreakerConfig{
		Name:                name,
		MaxRequests:         cfg.MaxRequests,
		Interval:            cfg.Interval,
		Timeout:             cfg.Timeout,
		ConsecutiveFailures: cfg.ConsecutiveFailures,
		Logger:              logger,
	})
}
