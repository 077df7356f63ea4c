package autosave

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pitchside/playbook/internal/autosave"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
