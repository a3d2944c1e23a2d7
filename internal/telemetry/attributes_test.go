package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
)

func TestAddRequestAttributes_FallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Logger()
	logger.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { logger.SetLogger(prev) })

	AddRequestAttributes(context.Background(), KeyProvider.String("twitter"), KeyStatus.Int(401))

	out := buf.String()
	for _, want := range []string{"gtm.provider=twitter", "http.response.status_code=401", "observability.fallback=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}
