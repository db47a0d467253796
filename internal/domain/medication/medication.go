// Package medication implements the medication domain model.
package medication

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Unit is the dose unit a medication is measured in
type Unit string

const (
	UnitMilliliter Unit = "ml"
	UnitMilligram  Unit = "mg"
	UnitTablet     Unit = "tablet"
	UnitDrop       Unit = "drop"
	UnitPuff       Unit = "puff"
	UnitSachet     Unit = "sachet"
	UnitUnit       Unit = "unit"
)

// Route is the administration route
type Route string

const (
	RouteOral    Route = "oral"
	RouteTopical Route = "topical"
	RouteInhaled Route = "inhaled"
	RouteNasal   Route = "nasal"
	RouteRectal  Route = "rectal"
	RouteOcular  Route = "ocular"
	RouteOtic    Route = "otic"
)

var validUnits = map[Unit]bool{
	UnitMilliliter: true,
	UnitMilligram:  true,
	UnitTablet:     true,
	UnitDrop:       true,
	UnitPuff:       true,
	UnitSachet:     true,
	UnitUnit:       true,
}

var validRoutes = map[Route]bool{
	RouteOral:    true,
	RouteTopical: true,
	RouteInhaled: true,
	RouteNasal:   true,
	RouteRectal:  true,
	RouteOcular:  true,
	RouteOtic:    true,
}

var (
	ErrInvalidMedication = errors.New("invalid medication")
	ErrNotFound          = errors.New("medication not found")
)

// ValidUnit reports whether u is a known dose unit
func ValidUnit(u Unit) bool {
	return validUnits[u]
}

// Medication is a prescribable item for one child. Once in use it is
// stopped (soft-deleted) rather than removed, so historical dose
// instances and logs stay intact.
type Medication struct {
	ID          string
	ChildID     string
	CaregiverID string
	Name        string
	DoseAmount  float64
	DoseUnit    Unit
	Route       Route
	PRN         bool
	Notes       string
	StartedAt   time.Time
	StoppedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewInput holds the caller-supplied fields for a new medication
type NewInput struct {
	ChildID     string
	CaregiverID string
	Name        string
	DoseAmount  float64
	DoseUnit    Unit
	Route       Route
	PRN         bool
	Notes       string
	StartedAt   time.Time
}

// New validates the input and builds a medication
func New(in NewInput, now time.Time) (Medication, error) {
	if strings.TrimSpace(in.ChildID) == "" || strings.TrimSpace(in.CaregiverID) == "" {
		return Medication{}, ErrInvalidMedication
	}
	if strings.TrimSpace(in.Name) == "" {
		return Medication{}, ErrInvalidMedication
	}
	if in.DoseAmount <= 0 {
		return Medication{}, ErrInvalidMedication
	}
	if !validUnits[in.DoseUnit] {
		return Medication{}, ErrInvalidMedication
	}
	if !validRoutes[in.Route] {
		return Medication{}, ErrInvalidMedication
	}

	startedAt := in.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}

	return Medication{
		ID:          uuid.NewString(),
		ChildID:     in.ChildID,
		CaregiverID: in.CaregiverID,
		Name:        strings.TrimSpace(in.Name),
		DoseAmount:  in.DoseAmount,
		DoseUnit:    in.DoseUnit,
		Route:       in.Route,
		PRN:         in.PRN,
		Notes:       strings.TrimSpace(in.Notes),
		StartedAt:   startedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Active reports whether the medication has not been stopped
func (m Medication) Active() bool {
	return m.StoppedAt == nil
}

// Stop marks the medication as stopped at the given instant
func (m *Medication) Stop(at time.Time) {
	if m.StoppedAt != nil {
		return
	}
	m.StoppedAt = &at
	m.UpdatedAt = at
}
