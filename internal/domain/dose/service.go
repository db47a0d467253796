package dose

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/domain/medication"
)

// Service serves the due-medications read path: a horizon sweep as a
// precondition, then the caregiver's pending instances classified and
// sorted for display.
type Service struct {
	maintainer *Maintainer
	instances  InstanceRepository
	meds       medication.Repository
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates the due-medications service
func NewService(maintainer *Maintainer, instances InstanceRepository, meds medication.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		maintainer: maintainer,
		instances:  instances,
		meds:       meds,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Due returns the caregiver's due list: every pending instance due
// within the next hour or earlier (overdue included), overdue first.
// The sweep runs first so fresh gaps are filled before the read, but a
// sweep failure never blocks the list itself.
func (s *Service) Due(ctx context.Context, caregiverID string) ([]DueItem, error) {
	s.maintainer.EnsureCoverage(ctx, caregiverID)

	now := s.now()
	pending, err := s.instances.ListPendingDueBefore(ctx, caregiverID, now.Add(DueListWindow))
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return []DueItem{}, nil
	}

	names := make(map[string]string)
	items := make([]DueItem, 0, len(pending))
	for _, inst := range pending {
		name, ok := names[inst.MedicationID]
		if !ok {
			med, err := s.meds.GetByID(ctx, inst.MedicationID)
			if err != nil {
				s.logger.Warn("due list: medication lookup failed",
					zap.String("medication_id", inst.MedicationID),
					zap.Error(err))
			} else {
				name = med.Name
			}
			names[inst.MedicationID] = name
		}
		items = append(items, DueItem{
			Instance:       inst,
			Urgency:        Classify(now, inst.DueAt),
			MedicationName: name,
		})
	}

	SortDueItems(items)
	return items, nil
}
