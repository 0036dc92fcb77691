package cleaner

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/feedclean/settings"
)

// Scan runs a single pass over a static document with a fixed
// configuration. The returned host holds the cleaned document.
func Scan(ctx context.Context, r io.Reader, cfg settings.Configuration, logger *slog.Logger) (Report, *StaticHost, error) {
	if logger == nil {
		logger = slog.Default()
	}
	host, err := LoadStaticHost(r)
	if err != nil {
		return Report{}, nil, err
	}
	c := New(Config{
		Host:     host,
		Settings: settings.NewCache(settings.Fixed(cfg), settings.WithCacheLogger(logger)),
		Logger:   logger,
	})
	rep, err := c.RunPass(ctx)
	if err != nil {
		return Report{}, nil, err
	}
	return rep, host, nil
}
