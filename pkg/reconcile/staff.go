package reconcile

import (
	"context"

	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

// StaffDelegate pushes staff accounts one way: source staff from the
// participating organizations who have no platform account are created.
// Staff accounts are never updated or deleted downstream.
type StaffDelegate struct {
	platform   Platform
	source     *snapshot.Index
	downstream *snapshot.Index
	recorder   *Recorder
}

// NewStaffDelegate creates the staff routine.
func NewStaffDelegate(p Platform, source, downstream *snapshot.Index, recorder *Recorder) *StaffDelegate {
	return &StaffDelegate{platform: p, source: source, downstream: downstream, recorder: recorder}
}

// Name implements Delegate.
func (d *StaffDelegate) Name() string { return RoutineStaff }

// Run implements Delegate.
func (d *StaffDelegate) Run(ctx context.Context) error {
	ctx = logging.WithRoutine(ctx, d.Name())
	log := logging.FromContext(ctx)

	downstream := make(map[string]bool)
	for _, id := range d.downstream.StaffIDs() {
		downstream[id] = true
	}

	var toCreate []*roster.StaffMember
	for _, id := range d.source.StaffIDs() {
		m, _ := d.source.Staff(id)
		if !roster.StaffOrgs[roster.CanonicalOrg(m.OrgID)] {
			continue
		}
		if !downstream[id] {
			toCreate = append(toCreate, m)
		}
	}

	log.Info().Int("to_create", len(toCreate)).Msg("Computed staff diff")

	if d.recorder.Enabled() {
		for _, m := range toCreate {
			d.recorder.Record(Operation{Routine: d.Name(), Kind: OpCreate, Entity: roster.KindStaff, ID: m.UserID})
		}
		return nil
	}

	if len(toCreate) == 0 {
		return nil
	}

	byID := make(map[string]*roster.StaffMember, len(toCreate))
	for _, m := range toCreate {
		byID[m.UserID] = m
	}
	results, err := d.platform.CreateStaff(ctx, toCreate)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.Succeeded() {
			log.Warn().Str("staff_id", r.ID).Str("reason", r.Message).
				Msg("Staff account was not created")
			continue
		}
		d.downstream.AddStaff(byID[r.ID])
	}

	return nil
}
