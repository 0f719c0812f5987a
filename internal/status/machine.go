// Package status applies resource status transitions and their side effects
// on incident assignment.
package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
	"github.com/luke-gs/cadsync/internal/logging"
	"github.com/luke-gs/cadsync/internal/state"
)

// Updater sends status changes to the dispatch service.
type Updater interface {
	UpdateStatus(ctx context.Context, callsign string, req cad.StatusUpdateRequest) (cad.Ack, error)
}

// Ensure the dispatch client satisfies Updater at compile time.
var _ Updater = (*cad.Client)(nil)

// Update describes one requested status change.
type Update struct {
	Callsign         string
	Status           cad.ResourceStatus
	IncidentID       string
	Comments         string
	LocationComments string
}

// Machine validates status changes, confirms them with the dispatch service
// and applies them to the store.
type Machine struct {
	store *state.Store
	api   Updater
	log   logrus.FieldLogger
}

// New returns a Machine. A nil logger discards output.
func New(store *state.Store, api Updater, log logrus.FieldLogger) *Machine {
	return &Machine{store: store, api: api, log: logging.OrDiscard(log)}
}

// Update validates u, sends it to the dispatch service and applies it locally
// once the service accepts it. A refused or failed remote call returns
// cad.ErrStatusUpdateFailed and leaves the store unchanged.
func (m *Machine) Update(ctx context.Context, u Update) error {
	u.Callsign = strings.TrimSpace(u.Callsign)
	u.IncidentID = strings.TrimSpace(u.IncidentID)

	var current string
	var err error
	m.store.View(func(tx *state.Tx) {
		current, err = validate(tx, u.Callsign, u.Status, u.IncidentID)
	})
	if err != nil {
		return err
	}

	req := cad.StatusUpdateRequest{
		Status:           u.Status,
		IncidentID:       u.IncidentID,
		Comments:         u.Comments,
		LocationComments: u.LocationComments,
	}
	if req.IncidentID == "" && u.Status.Class() != cad.ClassGeneral {
		req.IncidentID = current
	}

	log := m.log.WithFields(logrus.Fields{
		"callsign": u.Callsign,
		"status":   string(u.Status),
		"incident": req.IncidentID,
	})

	ack, err := m.api.UpdateStatus(ctx, u.Callsign, req)
	if err != nil {
		log.WithError(err).Warn("status update failed")
		return fmt.Errorf("%w: %w", cad.ErrStatusUpdateFailed, err)
	}
	if !ack.Accepted {
		log.WithField("message", ack.Message).Warn("status update refused")
		return fmt.Errorf("%w: %s", cad.ErrStatusUpdateFailed, ack.Message)
	}

	if err := m.store.Update(func(tx *state.Tx) error {
		return Apply(tx, u.Callsign, u.Status, u.IncidentID)
	}); err != nil {
		log.WithError(err).Warn("accepted status not applied locally")
		return err
	}
	log.Info("status applied")
	return nil
}

// validate checks that the callsign is known, the status is one of the known
// values and that incident statuses have an incident to attach to. It returns
// the resource's current incident ID.
func validate(tx *state.Tx, callsign string, status cad.ResourceStatus, incidentID string) (string, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", cad.ErrInvalidStatus, status)
	}
	r, ok := tx.Resource(callsign)
	if !ok {
		return "", fmt.Errorf("%w: %s", cad.ErrUnknownCallsign, callsign)
	}
	current := r.CurrentIncidentID()
	if status.RequiresIncident() && current == "" {
		if incidentID == "" {
			return "", fmt.Errorf("%w: %s", cad.ErrIncidentRequired, status)
		}
		if _, ok := tx.Incident(incidentID); !ok {
			return "", fmt.Errorf("%w: incident %s not found", cad.ErrIncidentRequired, incidentID)
		}
	}
	return current, nil
}

// Apply runs a status transition inside an open store update. An incident
// status is refused with cad.ErrIncidentRequired, before anything changes,
// when the resource has no current incident and incidentID is not in the
// store. Otherwise:
//
//  1. Finalise closes the current incident and becomes On Air.
//  2. Moving from an incident or emergency status to a general one clears
//     the current incident and drops incidentID.
//  3. The new status is stored.
//  4. A non-empty incidentID is assigned when there is no current incident.
//  5. A CallsignChanged event is queued.
//
// Apply does not contact the dispatch service.
func Apply(tx *state.Tx, callsign string, newStatus cad.ResourceStatus, incidentID string) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: %q", cad.ErrInvalidStatus, newStatus)
	}
	r, ok := tx.Resource(callsign)
	if !ok {
		return fmt.Errorf("%w: %s", cad.ErrUnknownCallsign, callsign)
	}
	if newStatus.RequiresIncident() && r.CurrentIncidentID() == "" {
		if incidentID == "" {
			return fmt.Errorf("%w: %s", cad.ErrIncidentRequired, newStatus)
		}
		if _, ok := tx.Incident(incidentID); !ok {
			return fmt.Errorf("%w: incident %s not found", cad.ErrIncidentRequired, incidentID)
		}
	}

	if newStatus == cad.StatusFinalise {
		if current := r.CurrentIncidentID(); current != "" {
			tx.FinalizeIncident(current)
		}
		newStatus = cad.StatusOnAir
		incidentID = ""
	}

	switch r.Status.Class() {
	case cad.ClassIncident, cad.ClassEmergency:
		if newStatus.Class() == cad.ClassGeneral {
			if current := r.CurrentIncidentID(); current != "" {
				tx.ClearIncident(current, callsign)
			}
			incidentID = ""
		}
	}

	tx.SetStatus(callsign, newStatus)

	if incidentID != "" {
		if after, ok := tx.Resource(callsign); ok && after.CurrentIncident == nil {
			tx.AssignIncident(incidentID, callsign)
		}
	}

	tx.Emit(events.Event{Kind: events.CallsignChanged, Callsign: callsign})
	return nil
}
