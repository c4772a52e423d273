package usecases

import (
	"context"
	"time"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// ListInFlightUseCase reports the subscriptions collected for a day that
// have not finished processing yet.
type ListInFlightUseCase struct {
	inFlight autopayment.InFlightSet
	clock    biztime.Clock
	logger   logger.Interface
}

func NewListInFlightUseCase(inFlight autopayment.InFlightSet, clock biztime.Clock, logger logger.Interface) *ListInFlightUseCase {
	return &ListInFlightUseCase{inFlight: inFlight, clock: clock, logger: logger}
}

// Execute lists the given day, or today when day is zero.
func (uc *ListInFlightUseCase) Execute(ctx context.Context, day time.Time) ([]uint, error) {
	if day.IsZero() {
		day = uc.clock.Now()
	}
	ids, err := uc.inFlight.Members(ctx, day)
	if err != nil {
		uc.logger.Errorw("failed to read in-flight subscriptions", "date", biztime.DateKey(day), "error", err)
		return nil, err
	}
	return ids, nil
}
