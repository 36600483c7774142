package expiry

import (
	"context"
	"testing"
	"time"

	"github.com/darecoin/backend/internal/dares"
)

func TestScheduleWithoutRedis(t *testing.T) {
	// no-ops without a client
	Schedule(context.Background(), nil, dares.DareKind, 1, time.Now())
	Unschedule(context.Background(), nil, dares.TruthKind, 1)
}
