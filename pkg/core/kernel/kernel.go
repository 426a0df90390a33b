// Package kernel implements the §4.2 constraint kernel: pure predicates
// over one entry and a partial schedule. No predicate keeps hidden state;
// some are free functions and the rest are methods on Kernel, which only
// bundles the lookup tables (clients, therapists, callouts, constants) the
// predicates need.
package kernel

import (
	"fmt"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

// Severity tags a violation as hard (the schedule is invalid) or soft (the
// schedule is valid but penalized).
type Severity string

const (
	Hard Severity = "hard"
	Soft Severity = "soft"
)

// Violation is one tagged constraint failure.
type Violation struct {
	RuleID   string
	Message  string
	Detail   string
	Severity Severity
	EntryID  string
}

// Kernel bundles the read-only lookup tables the constraint predicates
// consult. It holds no mutable state and is safe to share across entries.
type Kernel struct {
	Clients    map[string]*model.Client
	Therapists map[string]*model.Therapist
	Callouts   []model.Callout
	Constants  model.Constants
}

// New builds a Kernel from snapshot slices.
func New(clients []model.Client, therapists []model.Therapist, callouts []model.Callout, constants model.Constants) *Kernel {
	k := &Kernel{
		Clients:    make(map[string]*model.Client, len(clients)),
		Therapists: make(map[string]*model.Therapist, len(therapists)),
		Callouts:   callouts,
		Constants:  constants,
	}
	for i := range clients {
		k.Clients[clients[i].ID] = &clients[i]
	}
	for i := range therapists {
		k.Therapists[therapists[i].ID] = &therapists[i]
	}
	return k
}

// TherapistConflict reports any other entry on the same weekday with the
// same therapist whose range overlaps e's.
func TherapistConflict(e model.ScheduleEntry, schedule []model.ScheduleEntry) bool {
	for _, o := range schedule {
		if o.ID == e.ID {
			continue
		}
		if o.Weekday == e.Weekday && o.TherapistID == e.TherapistID && o.Overlaps(e.StartMin, e.EndMin) {
			return true
		}
	}
	return false
}

// ClientConflict reports any other entry on the same weekday with the same
// client whose range overlaps e's. Null clients never conflict.
func ClientConflict(e model.ScheduleEntry, schedule []model.ScheduleEntry) bool {
	if e.ClientID == "" {
		return false
	}
	for _, o := range schedule {
		if o.ID == e.ID {
			continue
		}
		if o.Weekday == e.Weekday && o.ClientID == e.ClientID && o.Overlaps(e.StartMin, e.EndMin) {
			return true
		}
	}
	return false
}

// CalloutConflict reports any callout covering date T that targets e's
// therapist or client and whose intra-day window overlaps e's.
func CalloutConflict(e model.ScheduleEntry, callouts []model.Callout, t time.Time) bool {
	for _, c := range callouts {
		if !c.CoversDate(t) {
			continue
		}
		targets := (c.EntityKind == model.CalloutTherapist && c.EntityID == e.TherapistID) ||
			(c.EntityKind == model.CalloutClient && e.ClientID != "" && c.EntityID == e.ClientID)
		if !targets {
			continue
		}
		if e.StartMin < c.WindowEnd && c.WindowStart < e.EndMin {
			return true
		}
	}
	return false
}

// CredentialMismatch reports whether the client's insurance requirements are
// not a subset of the therapist's qualifications.
func (k *Kernel) CredentialMismatch(e model.ScheduleEntry) bool {
	if e.ClientID == "" {
		return false
	}
	c, cok := k.Clients[e.ClientID]
	t, tok := k.Therapists[e.TherapistID]
	if !cok || !tok {
		return true
	}
	return !t.MeetsRequirements(c)
}

// AHQualificationMissing reports whether an allied-health entry's therapist
// lacks the kind capability or the corresponding certificate qualification.
func (k *Kernel) AHQualificationMissing(e model.ScheduleEntry) bool {
	var kind model.AHKind
	switch e.Kind {
	case model.KindAHOT:
		kind = model.AHOT
	case model.KindAHSLP:
		kind = model.AHSLP
	default:
		return false
	}
	t, ok := k.Therapists[e.TherapistID]
	if !ok {
		return true
	}
	if !t.AHCapable[kind] {
		return true
	}
	cert := certificateTag(kind)
	return !t.HasQualification(cert)
}

func certificateTag(kind model.AHKind) model.QualificationTag {
	switch kind {
	case model.AHOT:
		return "OT Certified"
	case model.AHSLP:
		return "SLP Certified"
	}
	return ""
}

// DurationInvalid reports whether e violates invariants 3-5: ABA entries
// must be [60,180]; lunches exactly 30; AH entries strictly positive and
// equal to the client's need duration.
func (k *Kernel) DurationInvalid(e model.ScheduleEntry) bool {
	d := e.Duration()
	switch e.Kind {
	case model.KindABA:
		return d < k.Constants.ABAMinDuration || d > k.Constants.ABAMaxDuration
	case model.KindIndirect:
		return d != k.Constants.LunchDuration
	case model.KindAHOT, model.KindAHSLP:
		if d <= 0 {
			return true
		}
		c, ok := k.Clients[e.ClientID]
		if !ok {
			return true
		}
		wantKind := model.AHOT
		if e.Kind == model.KindAHSLP {
			wantKind = model.AHSLP
		}
		for _, need := range c.AlliedHealthNeeds {
			if need.Kind == wantKind && need.DurationMinutes == d {
				return false
			}
		}
		return true
	default:
		return d <= 0
	}
}

// OutsideOperatingHours reports whether e violates invariant 1 for non-lunch
// kinds: it must lie on the grid and within [OPStartMin, OPEndMin].
func (k *Kernel) OutsideOperatingHours(e model.ScheduleEntry) bool {
	if e.Kind == model.KindIndirect {
		return false
	}
	if e.StartMin%k.Constants.SlotMinutes != 0 || e.EndMin%k.Constants.SlotMinutes != 0 {
		return true
	}
	return e.StartMin < k.Constants.OPStartMin || e.EndMin > k.Constants.OPEndMin || e.StartMin >= e.EndMin
}

// SameClientBackToBack reports another entry with identical (therapist,
// client, weekday) whose end equals e's start or whose start equals e's end.
func SameClientBackToBack(e model.ScheduleEntry, schedule []model.ScheduleEntry) bool {
	if e.ClientID == "" {
		return false
	}
	for _, o := range schedule {
		if o.ID == e.ID {
			continue
		}
		if o.Weekday != e.Weekday || o.TherapistID != e.TherapistID || o.ClientID != e.ClientID {
			continue
		}
		if o.EndMin == e.StartMin || o.StartMin == e.EndMin {
			return true
		}
	}
	return false
}

// CanAdd aggregates every predicate against entry e and the rest of
// schedule (schedule may or may not already contain e; ignoreID, if
// non-empty, excludes that entry id from every comparison, used when
// re-checking an edit in place). It returns true with no violations when e
// may be added/kept as-is.
func (k *Kernel) CanAdd(e model.ScheduleEntry, schedule []model.ScheduleEntry, date time.Time, ignoreID string) (bool, []Violation) {
	var rest []model.ScheduleEntry
	if ignoreID == "" {
		rest = schedule
	} else {
		rest = make([]model.ScheduleEntry, 0, len(schedule))
		for _, o := range schedule {
			if o.ID != ignoreID {
				rest = append(rest, o)
			}
		}
	}

	var violations []Violation
	add := func(ruleID, msg string, sev Severity) {
		violations = append(violations, Violation{RuleID: ruleID, Message: msg, Severity: sev, EntryID: e.ID})
	}

	if TherapistConflict(e, rest) {
		add("THERAPIST_CONFLICT", fmt.Sprintf("therapist %s double-booked", e.TherapistID), Hard)
	}
	if ClientConflict(e, rest) {
		add("CLIENT_CONFLICT", fmt.Sprintf("client %s double-booked", e.ClientID), Hard)
	}
	if CalloutConflict(e, k.Callouts, date) {
		add("CALLOUT_OVERLAP", "entry overlaps a callout", Hard)
	}
	if k.CredentialMismatch(e) {
		add("CREDENTIAL_MISMATCH", "therapist lacks a required insurance qualification", Hard)
	}
	if k.AHQualificationMissing(e) {
		add("AH_QUALIFICATION_MISSING", "therapist lacks the allied-health capability or certificate", Hard)
	}
	if k.DurationInvalid(e) {
		add("DURATION_INVALID", "entry duration violates its kind's rule", Hard)
	}
	if k.OutsideOperatingHours(e) {
		add("OUTSIDE_OPERATING_HOURS", "entry falls outside the operating window or off-grid", Hard)
	}
	if SameClientBackToBack(e, rest) {
		add("SAME_CLIENT_BACK_TO_BACK", "same therapist/client entries touch with no gap", Soft)
	}

	for _, v := range violations {
		if v.Severity == Hard {
			return false, violations
		}
	}
	return true, violations
}
