// Package repair implements the §4.9 repair pipeline: eight operators
// applied in fixed order after every mutation/crossover to restore
// feasibility.
package repair

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/ilford-drop-in/pkg/core/availability"
	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/core/timeslot"
	"github.com/jakechorley/ilford-drop-in/pkg/core/validator"
)

// Pipeline bundles the context every repair step needs.
type Pipeline struct {
	Kernel           *kernel.Kernel
	Constants        model.Constants
	Date             time.Time
	LunchPreferences map[string]model.LunchPreference
	RNG              *rand.Rand
}

// Run applies all eight repair steps in fixed order and returns the
// repaired entry list.
func (p *Pipeline) Run(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = p.cleanupMerge(entries)
	entries = p.durationClamp(entries)
	entries = p.credentialSwap(entries)
	entries = p.medicaidCap(entries)
	entries = p.backToBackShift(entries)
	entries = p.coverageGapFill(entries)
	entries = p.lunchPlacement(entries)
	entries = p.teamRealign(entries)
	return entries
}

func cloneEntries(entries []model.ScheduleEntry) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, len(entries))
	copy(out, entries)
	return out
}

func (p *Pipeline) tracker(entries []model.ScheduleEntry) *availability.Tracker {
	grid := timeslot.NewGrid(p.Constants)
	t := availability.New(grid)
	t.Rebuild(entries, p.Kernel.Callouts, p.Date)
	return t
}

// CleanupMerge exposes the cleanup-merge step on its own, for the
// evolutionary loop's final pass after local search.
func (p *Pipeline) CleanupMerge(entries []model.ScheduleEntry) []model.ScheduleEntry {
	return p.cleanupMerge(entries)
}

// 1. Cleanup-merge: merge adjacent ABA entries sharing (therapist, client)
// whose combined duration is <=180, iterated to fixpoint capped at 50
// passes.
func (p *Pipeline) cleanupMerge(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	for pass := 0; pass < 50; pass++ {
		merged := false
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].TherapistID != entries[j].TherapistID {
				return entries[i].TherapistID < entries[j].TherapistID
			}
			return entries[i].StartMin < entries[j].StartMin
		})
		for i := 0; i < len(entries)-1; i++ {
			a, b := entries[i], entries[i+1]
			if a.Kind != model.KindABA || b.Kind != model.KindABA {
				continue
			}
			if a.TherapistID != b.TherapistID || a.ClientID != b.ClientID {
				continue
			}
			if a.EndMin != b.StartMin {
				continue
			}
			combined := b.EndMin - a.StartMin
			if combined > p.Constants.ABAMaxDuration {
				continue
			}
			a.EndMin = b.EndMin
			entries[i] = a
			entries = append(entries[:i+1], entries[i+2:]...)
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return entries
}

// 2. Duration clamp: ABA entries longer than the max are truncated; shorter
// than the min are extended to the min.
func (p *Pipeline) durationClamp(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	for i, e := range entries {
		if e.Kind != model.KindABA {
			continue
		}
		if e.Duration() > p.Constants.ABAMaxDuration {
			entries[i].EndMin = e.StartMin + p.Constants.ABAMaxDuration
		} else if e.Duration() < p.Constants.ABAMinDuration {
			entries[i].EndMin = e.StartMin + p.Constants.ABAMinDuration
		}
	}
	return entries
}

// 3. Credential swap: for each entry whose therapist fails the client's
// requirements, try each qualified therapist in random order, commit the
// first that passes CanAdd ignoring the current entry.
func (p *Pipeline) credentialSwap(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	for i, e := range entries {
		if !p.Kernel.CredentialMismatch(e) {
			continue
		}
		candidates := p.qualifiedTherapists(e)
		p.RNG.Shuffle(len(candidates), func(a, b int) { candidates[a], candidates[b] = candidates[b], candidates[a] })
		for _, therapistID := range candidates {
			candidate := e
			candidate.TherapistID = therapistID
			if ok, _ := p.Kernel.CanAdd(candidate, entries, p.Date, e.ID); ok {
				entries[i] = candidate
				break
			}
		}
	}
	return entries
}

func (p *Pipeline) qualifiedTherapists(e model.ScheduleEntry) []string {
	var out []string
	c, ok := p.Kernel.Clients[e.ClientID]
	if !ok {
		return nil
	}
	for id, t := range p.Kernel.Therapists {
		if t.MeetsRequirements(c) {
			out = append(out, id)
		}
	}
	return out
}

// 4. Medicaid cap: for each MD_MEDICAID client with more than the cap of
// distinct therapists, keep the first N (by earliest entry start), attempt
// to swap offending entries to one of those N, else drop.
func (p *Pipeline) medicaidCap(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	byClient := map[string][]int{}
	for i, e := range entries {
		if e.ClientID == "" {
			continue
		}
		c, ok := p.Kernel.Clients[e.ClientID]
		if !ok || !c.HasTag(model.MDMedicaidTag) {
			continue
		}
		byClient[e.ClientID] = append(byClient[e.ClientID], i)
	}
	for clientID, idxs := range byClient {
		sort.Slice(idxs, func(a, b int) bool { return entries[idxs[a]].StartMin < entries[idxs[b]].StartMin })
		kept := map[string]bool{}
		var order []string
		for _, i := range idxs {
			id := entries[i].TherapistID
			if !kept[id] {
				kept[id] = true
				order = append(order, id)
			}
		}
		if len(order) <= p.Kernel.Constants.MedicaidCap {
			continue
		}
		allowed := map[string]bool{}
		for i := 0; i < p.Kernel.Constants.MedicaidCap; i++ {
			allowed[order[i]] = true
		}
		var toDrop []int
		for _, i := range idxs {
			e := entries[i]
			if allowed[e.TherapistID] {
				continue
			}
			swapped := false
			for allowedID := range allowed {
				candidate := e
				candidate.TherapistID = allowedID
				if ok, _ := p.Kernel.CanAdd(candidate, entries, p.Date, e.ID); ok {
					entries[i] = candidate
					swapped = true
					break
				}
			}
			if !swapped {
				toDrop = append(toDrop, i)
			}
		}
		_ = clientID
		if len(toDrop) > 0 {
			entries = dropIndices(entries, toDrop)
		}
	}
	return entries
}

func dropIndices(entries []model.ScheduleEntry, idxs []int) []model.ScheduleEntry {
	drop := map[int]bool{}
	for _, i := range idxs {
		drop[i] = true
	}
	out := entries[:0:0]
	for i, e := range entries {
		if !drop[i] {
			out = append(out, e)
		}
	}
	return out
}

// 5. Back-to-back shift: for each therapist, sort entries by start; where
// adjacent entries share a client and touch, attempt to move the later one
// by +15, else the earlier by -15, otherwise drop the later.
func (p *Pipeline) backToBackShift(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	byTherapist := map[string][]int{}
	for i, e := range entries {
		byTherapist[e.TherapistID] = append(byTherapist[e.TherapistID], i)
	}
	var toDrop []int
	step := p.Constants.SlotMinutes
	for _, idxs := range byTherapist {
		sort.Slice(idxs, func(a, b int) bool { return entries[idxs[a]].StartMin < entries[idxs[b]].StartMin })
		for j := 0; j < len(idxs)-1; j++ {
			ai, bi := idxs[j], idxs[j+1]
			a, b := entries[ai], entries[bi]
			if a.ClientID == "" || a.ClientID != b.ClientID {
				continue
			}
			if a.EndMin != b.StartMin {
				continue
			}
			laterCandidate := b
			laterCandidate.StartMin += step
			laterCandidate.EndMin += step
			if ok, _ := p.Kernel.CanAdd(laterCandidate, entries, p.Date, b.ID); ok {
				entries[bi] = laterCandidate
				continue
			}
			earlierCandidate := a
			earlierCandidate.StartMin -= step
			earlierCandidate.EndMin -= step
			if ok, _ := p.Kernel.CanAdd(earlierCandidate, entries, p.Date, a.ID); ok {
				entries[ai] = earlierCandidate
				continue
			}
			toDrop = append(toDrop, bi)
		}
	}
	if len(toDrop) > 0 {
		entries = dropIndices(entries, toDrop)
	}
	return entries
}

// 6. Coverage-gap fill: for each client, compute residual gaps; for gaps of
// at least 60 minutes, try shrinking lengths from min(180, gap) down to 60
// in 15-minute decrements, committing the first qualified free therapist.
func (p *Pipeline) coverageGapFill(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	if p.Date.Weekday() == time.Saturday || p.Date.Weekday() == time.Sunday {
		return entries
	}
	gaps := validator.Gaps(p.Kernel, entries, p.Date)
	tracker := p.tracker(entries)
	for _, gap := range gaps {
		length := gap.EndMin - gap.StartMin
		if length < 60 {
			continue
		}
		maxLen := 180
		if length < maxLen {
			maxLen = length
		}
		c, ok := p.Kernel.Clients[gap.ClientID]
		if !ok {
			continue
		}
		placed := false
		for l := maxLen; l >= 60 && !placed; l -= p.Constants.SlotMinutes {
			for start := gap.StartMin; start+l <= gap.EndMin && !placed; start += p.Constants.SlotMinutes {
				for id, t := range p.Kernel.Therapists {
					if !t.MeetsRequirements(c) {
						continue
					}
					if !tracker.Available(id, gap.ClientID, start, start+l, "") {
						continue
					}
					entry := model.ScheduleEntry{
						ID:          uuid.NewString(),
						ClientID:    gap.ClientID,
						TherapistID: id,
						Weekday:     p.Date.Weekday(),
						StartMin:    start,
						EndMin:      start + l,
						Kind:        model.KindABA,
					}
					if ok, _ := p.Kernel.CanAdd(entry, entries, p.Date, ""); !ok {
						continue
					}
					entries = append(entries, entry)
					tracker.Book(id, gap.ClientID, start, start+l)
					placed = true
					break
				}
			}
		}
	}
	return entries
}

// 7. Lunch placement: for each therapist with sufficient billable minutes
// and no lunch, score candidate windows and try the top 5; if none fit,
// split a long ABA session to create a 30-minute hole.
func (p *Pipeline) lunchPlacement(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	billable := map[string]int{}
	hasLunch := map[string]bool{}
	for _, e := range entries {
		if e.Kind == model.KindIndirect {
			hasLunch[e.TherapistID] = true
			continue
		}
		if e.HasClient() {
			billable[e.TherapistID] += e.Duration()
		}
	}

	tracker := p.tracker(entries)
	for therapistID, mins := range billable {
		if mins < 300 || hasLunch[therapistID] {
			continue
		}
		candidates := p.scoreLunchWindows(entries, tracker, therapistID)
		placed := false
		top := candidates
		if len(top) > 5 {
			top = top[:5]
		}
		for _, cand := range top {
			if tracker.Available(therapistID, "", cand.start, cand.start+p.Constants.LunchDuration, "") {
				entries = append(entries, model.ScheduleEntry{
					ID:          uuid.NewString(),
					TherapistID: therapistID,
					Weekday:     p.Date.Weekday(),
					StartMin:    cand.start,
					EndMin:      cand.start + p.Constants.LunchDuration,
					Kind:        model.KindIndirect,
				})
				tracker.Book(therapistID, "", cand.start, cand.start+p.Constants.LunchDuration)
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		entries = p.splitForLunchHole(entries, tracker, therapistID)
	}
	return entries
}

type lunchCandidate struct {
	start int
	score float64
}

func (p *Pipeline) scoreLunchWindows(entries []model.ScheduleEntry, tracker *availability.Tracker, therapistID string) []lunchCandidate {
	var out []lunchCandidate
	midpoint := (p.Constants.OPStartMin + p.Constants.OPEndMin) / 2
	latestStart := p.Constants.LunchEndMin - p.Constants.LunchDuration

	teamLunches := p.teammateLunchStarts(entries, therapistID)

	for start := p.Constants.LunchStartMin; start <= latestStart; start += p.Constants.SlotMinutes {
		if !tracker.Available(therapistID, "", start, start+p.Constants.LunchDuration, "") {
			continue
		}
		score := 0.0
		dist := abs(start - midpoint)
		score += 100.0 - float64(dist)/float64(p.Constants.OPEndMin-p.Constants.OPStartMin)*100.0
		if p.hasNaturalGap(entries, therapistID, start, start+p.Constants.LunchDuration) {
			score += 50
		}
		if pref, ok := p.LunchPreferences[therapistID]; ok && start >= pref.StartMin && start+p.Constants.LunchDuration <= pref.EndMin {
			score += 20
		}
		staggered := 0
		for _, s := range teamLunches {
			if abs(s-start) < 30 {
				staggered++
			}
		}
		if len(teamLunches) > 0 && float64(staggered)/float64(len(teamLunches)) >= 0.5 {
			score -= 30
		}
		out = append(out, lunchCandidate{start: start, score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func (p *Pipeline) teammateLunchStarts(entries []model.ScheduleEntry, therapistID string) []int {
	t, ok := p.Kernel.Therapists[therapistID]
	if !ok || t.TeamID == "" {
		return nil
	}
	var starts []int
	for _, e := range entries {
		if e.Kind != model.KindIndirect || e.TherapistID == therapistID {
			continue
		}
		other, ok := p.Kernel.Therapists[e.TherapistID]
		if ok && other.TeamID == t.TeamID {
			starts = append(starts, e.StartMin)
		}
	}
	return starts
}

func (p *Pipeline) hasNaturalGap(entries []model.ScheduleEntry, therapistID string, start, end int) bool {
	before, after := -1, -1
	for _, e := range entries {
		if e.TherapistID != therapistID || e.Kind == model.KindIndirect {
			continue
		}
		if e.EndMin <= start && (before == -1 || e.EndMin > before) {
			before = e.EndMin
		}
		if e.StartMin >= end && (after == -1 || e.StartMin < after) {
			after = e.StartMin
		}
	}
	if before != -1 && start-before >= 30 {
		return true
	}
	if after != -1 && after-end >= 30 {
		return true
	}
	return false
}

func (p *Pipeline) splitForLunchHole(entries []model.ScheduleEntry, tracker *availability.Tracker, therapistID string) []model.ScheduleEntry {
	latestStart := p.Constants.LunchEndMin - p.Constants.LunchDuration
	for i, e := range entries {
		if e.TherapistID != therapistID || e.Kind != model.KindABA || e.Duration() < 90 {
			continue
		}
		holeStart := e.StartMin + (e.Duration()-p.Constants.LunchDuration)/2
		holeStart -= holeStart % p.Constants.SlotMinutes
		if holeStart < p.Constants.LunchStartMin || holeStart > latestStart {
			continue
		}
		holeEnd := holeStart + p.Constants.LunchDuration
		if holeStart < e.StartMin || holeEnd > e.EndMin {
			continue
		}
		first := e
		first.EndMin = holeStart
		second := e
		second.ID = uuid.NewString()
		second.StartMin = holeEnd
		if first.Duration() < p.Constants.ABAMinDuration || second.Duration() < p.Constants.ABAMinDuration {
			continue
		}
		entries[i] = first
		entries = append(entries, second, model.ScheduleEntry{
			ID:          uuid.NewString(),
			TherapistID: therapistID,
			Weekday:     e.Weekday,
			StartMin:    holeStart,
			EndMin:      holeEnd,
			Kind:        model.KindIndirect,
		})
		tracker.Book(therapistID, "", holeStart, holeEnd)
		break
	}
	return entries
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// 8. Team realignment: for each entry whose client's team differs from the
// therapist's team, attempt to swap to a same-team qualified therapist.
func (p *Pipeline) teamRealign(entries []model.ScheduleEntry) []model.ScheduleEntry {
	entries = cloneEntries(entries)
	for i, e := range entries {
		if e.ClientID == "" {
			continue
		}
		c, cok := p.Kernel.Clients[e.ClientID]
		t, tok := p.Kernel.Therapists[e.TherapistID]
		if !cok || !tok || c.TeamID == "" || c.TeamID == t.TeamID {
			continue
		}
		for id, candidate := range p.Kernel.Therapists {
			if candidate.TeamID != c.TeamID || !candidate.MeetsRequirements(c) {
				continue
			}
			attempt := e
			attempt.TherapistID = id
			if ok, _ := p.Kernel.CanAdd(attempt, entries, p.Date, e.ID); ok {
				entries[i] = attempt
				break
			}
		}
	}
	return entries
}
