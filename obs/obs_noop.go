//go:build nometrics

package obs

import (
	"context"
	"time"
)

func IncRequestSubmitted(bool) {}

func SetPendingResolutions(int) {}

func SetInFlightResolutions(int) {}

func IncAdmitted(string) {}

func IncDeclined(string) {}

func IncReported(string) {}

func ObserveMerge(time.Duration, int) {}

func RecordSourceDuration(string, time.Duration) {}

func RecordSourceError(string, string) {}

func SetCircuitState(string, string) {}

func InitTracer(string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
