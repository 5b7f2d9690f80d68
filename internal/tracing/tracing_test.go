package tracing

import (
	"context"
	"testing"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func Test_Setup(t *testing.T) {
	t.Run("Should be a no-op when disabled", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), config.TracingConfig{
			Enabled:  false,
			Endpoint: "http://localhost:4318",
		})
		assert.Nil(t, err)
		assert.Nil(t, shutdown(context.Background()))
	})
	t.Run("Should be a no-op without an endpoint", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), config.TracingConfig{Enabled: true})
		assert.Nil(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Nil(t, shutdown(ctx))
	})
	t.Run("Should create a provider when an endpoint is set", func(t *testing.T) {
		// non-routable address, nothing is exported
		shutdown, err := Setup(context.Background(), config.TracingConfig{
			Enabled:     true,
			Endpoint:    "http://192.0.2.1:4318",
			ServiceName: "tracing-test",
		})
		assert.Nil(t, err)
		assert.Nil(t, shutdown(context.Background()))
	})
	t.Run("Should hand out tracers", func(t *testing.T) {
		_, span := Tracer("test").Start(context.Background(), "span")
		span.End()
	})
}
