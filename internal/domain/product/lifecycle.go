package product

import (
	"time"

	"github.com/dhos/dhos/internal/domain/derr"
)

// StartMonitoring moves an open enrollment into active clinician
// monitoring. Starting monitoring that is already active is a no-op; the
// change trail only records transitions.
func (e *Enrollment) StartMonitoring(at time.Time) (changed bool, err error) {
	if !e.Open() {
		return false, derr.Conflictf("enrollment in %s is closed", e.ProductName)
	}
	if e.MonitoredByClinician {
		return false, nil
	}
	e.MonitoredByClinician = true
	e.appendChange(EventStartMonitoring, at)
	return true, nil
}

// StopMonitoring pauses clinician monitoring on an open enrollment.
// Stopping monitoring that is not active is a no-op.
func (e *Enrollment) StopMonitoring(at time.Time) (changed bool, err error) {
	if !e.Open() {
		return false, derr.Conflictf("enrollment in %s is closed", e.ProductName)
	}
	if !e.MonitoredByClinician {
		return false, nil
	}
	e.MonitoredByClinician = false
	e.appendChange(EventStopMonitoring, at)
	return true, nil
}

// Close ends the enrollment. Closure is terminal: the enrollment can never
// reopen, and monitoring stops with it. The reason code "other" requires
// free text. Record-level closure checks run before this is called.
func (e *Enrollment) Close(date time.Time, reason, reasonOther *string) error {
	if !e.Open() {
		return derr.Conflictf("enrollment in %s is already closed", e.ProductName)
	}
	if reason != nil && *reason == ClosedReasonOtherCode && (reasonOther == nil || *reasonOther == "") {
		return derr.Validationf("closed_reason_other is required when closed_reason is %q", ClosedReasonOtherCode)
	}

	if e.MonitoredByClinician {
		e.MonitoredByClinician = false
		e.appendChange(EventStopMonitoring, date)
	}
	e.ClosedDate = &date
	e.ClosedReason = reason
	e.ClosedReasonOther = reasonOther
	e.appendChange(EventArchive, date)
	return nil
}

func (e *Enrollment) appendChange(event string, at time.Time) {
	e.Changes = append(e.Changes, Change{
		EnrollmentID: e.ID,
		Event:        event,
		CreatedAt:    at,
	})
}
