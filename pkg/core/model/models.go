// Package model holds the plain data types shared across the scheduling
// engine: clients, therapists, callouts, schedule entries, and the
// operational constants the engine is parameterized by.
package model

import "time"

// Role is a coarse seniority tag used for credential-swap ordering and
// aggregate checks (e.g. "BCBA with no direct client time").
type Role string

const (
	RoleBCBA  Role = "BCBA"
	RoleCF    Role = "CF"
	RoleSTAR3 Role = "STAR3"
	RoleSTAR2 Role = "STAR2"
	RoleSTAR1 Role = "STAR1"
	RoleRBT   Role = "RBT"
	RoleBT    Role = "BT"
	RoleOther Role = "Other"
)

// roleRank orders roles from most to least senior; lower rank is more senior.
var roleRank = map[Role]int{
	RoleBCBA:  0,
	RoleCF:    1,
	RoleSTAR3: 2,
	RoleSTAR2: 3,
	RoleSTAR1: 4,
	RoleRBT:   5,
	RoleBT:    6,
	RoleOther: 7,
}

// IsValid reports whether r is one of the known role tags.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// SeniorTo reports whether r outranks other (lower rank number wins).
func (r Role) SeniorTo(other Role) bool {
	return roleRank[r] < roleRank[other]
}

// AHKind is an allied-health session kind.
type AHKind string

const (
	AHOT  AHKind = "OT"
	AHSLP AHKind = "SLP"
)

// EntryKind distinguishes the kinds of schedule entry.
type EntryKind string

const (
	KindABA        EntryKind = "ABA"
	KindAHOT       EntryKind = "AH_OT"
	KindAHSLP      EntryKind = "AH_SLP"
	KindIndirect   EntryKind = "IndirectTime" // lunch
	KindAdminTime  EntryKind = "AdminTime"
)

// QualificationTag is an opaque credential/insurance/certificate marker, e.g.
// "BCBA", "RBT", "MD_MEDICAID", "OT Certified". The marker MDMedicaidTag
// activates the hard per-client therapist cap.
type QualificationTag string

// MDMedicaidTag activates the 3-distinct-therapist-per-day cap for a client.
const MDMedicaidTag QualificationTag = "MD_MEDICAID"

// Team is used only for soft affinity; no schedule is invalid for crossing
// team lines.
type Team struct {
	ID    string
	Name  string
	Color string
}

// AlliedHealthNeed is one recurring allied-health requirement for a client.
type AlliedHealthNeed struct {
	Kind              AHKind
	FrequencyPerWeek  int
	DurationMinutes   int
	PreferredStartMin *int // minutes since midnight, nil if no preference
	PreferredEndMin   *int
	PermittedWeekdays []time.Weekday // nil/empty means any weekday
}

// Client is a person receiving therapy.
type Client struct {
	ID                   string
	Name                 string
	TeamID               string // optional, "" if none
	InsuranceRequirements []QualificationTag
	AlliedHealthNeeds    []AlliedHealthNeed
}

// HasTag reports whether the client carries the given qualification tag
// among its insurance requirements.
func (c *Client) HasTag(tag QualificationTag) bool {
	for _, t := range c.InsuranceRequirements {
		if t == tag {
			return true
		}
	}
	return false
}

// Therapist is a person delivering therapy.
type Therapist struct {
	ID             string
	Name           string
	TeamID         string
	Role           Role
	Qualifications []QualificationTag
	AHCapable      map[AHKind]bool
}

// HasQualification reports whether t carries the given tag.
func (t *Therapist) HasQualification(tag QualificationTag) bool {
	for _, q := range t.Qualifications {
		if q == tag {
			return true
		}
	}
	return false
}

// MeetsRequirements reports whether t carries every one of the client's
// insurance requirement tags.
func (t *Therapist) MeetsRequirements(c *Client) bool {
	for _, req := range c.InsuranceRequirements {
		if !t.HasQualification(req) {
			return false
		}
	}
	return true
}

// CalloutEntityKind distinguishes who a callout targets.
type CalloutEntityKind string

const (
	CalloutClient    CalloutEntityKind = "client"
	CalloutTherapist CalloutEntityKind = "therapist"
)

// Callout is a pre-declared unavailability window for a client or therapist.
type Callout struct {
	ID           string
	EntityKind   CalloutEntityKind
	EntityID     string
	DateStart    time.Time // inclusive, date-only
	DateEnd      time.Time // inclusive, date-only
	WindowStart  int       // minutes since midnight
	WindowEnd    int
	Reason       string
}

// CoversDate reports whether the callout's date range includes t (date-only
// comparison).
func (c *Callout) CoversDate(t time.Time) bool {
	d := dateOnly(t)
	return !d.Before(dateOnly(c.DateStart)) && !d.After(dateOnly(c.DateEnd))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ScheduleEntry is one placed session, lunch, or admin block.
type ScheduleEntry struct {
	ID          string
	ClientID    string // empty for lunch/admin
	TherapistID string
	Weekday     time.Weekday
	StartMin    int
	EndMin      int
	Kind        EntryKind
}

// Duration returns the entry's length in minutes.
func (e *ScheduleEntry) Duration() int { return e.EndMin - e.StartMin }

// HasClient reports whether the entry carries a client (i.e. is not a
// lunch/admin block).
func (e *ScheduleEntry) HasClient() bool { return e.ClientID != "" }

// Overlaps reports whether [e.StartMin, e.EndMin) intersects [start, end).
func (e *ScheduleEntry) Overlaps(start, end int) bool {
	return e.StartMin < end && start < e.EndMin
}

// BaseSchedule is a named, reusable per-weekday preset used to seed the
// population.
type BaseSchedule struct {
	ID       string
	Name     string
	Weekdays []time.Weekday
	Entries  []ScheduleEntry
}

// LunchPreference is a therapist's learned preferred lunch window, as
// supplied by the learning-service collaborator.
type LunchPreference struct {
	StartMin int
	EndMin   int
}

// Constants holds the operational constants of the scheduling domain,
// settable by the host before a run.
type Constants struct {
	OPStartMin      int // operating window start, minutes since midnight
	OPEndMin        int
	LunchStartMin   int
	LunchEndMin     int // latest a lunch may *end*
	StaffWindowStartMin int // staff availability window, informational
	StaffWindowEndMin  int
	SlotMinutes     int
	ABAMinDuration  int
	ABAMaxDuration  int
	LunchDuration   int
	MedicaidCap     int
}

// DefaultConstants returns the §6 operational defaults.
func DefaultConstants() Constants {
	return Constants{
		OPStartMin:          8 * 60,
		OPEndMin:             17 * 60,
		LunchStartMin:        11*60 + 30,
		LunchEndMin:          13*60 + 30,
		StaffWindowStartMin:  7*60 + 30,
		StaffWindowEndMin:    18 * 60,
		SlotMinutes:          15,
		ABAMinDuration:       60,
		ABAMaxDuration:       180,
		LunchDuration:        30,
		MedicaidCap:          3,
	}
}

// NumSlots returns the number of 15-minute slots in the operating window.
func (c Constants) NumSlots() int {
	return (c.OPEndMin - c.OPStartMin) / c.SlotMinutes
}
