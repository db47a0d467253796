package dose

import (
	"time"

	"github.com/medikid/go-doseflow/internal/domain/medication"
)

// Log is the immutable record of a dose resolution. Logs are append-only:
// they are never edited or deleted, and the instance status is only a
// projection of them. InstanceID is nil for PRN doses, which have no
// scheduled occurrence behind them.
type Log struct {
	ID           string
	MedicationID string
	InstanceID   *string
	AmountGiven  float64
	Unit         medication.Unit
	Given        bool
	Reason       string
	RecordedBy   string
	RecordedAt   time.Time
}
