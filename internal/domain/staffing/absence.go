package staffing

import (
	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/roster"
)

// FilterAbsences drops candidates covered by a leave of the same staff
// member. A half-day leave leaves the other half-day untouched.
func FilterAbsences(cands []Candidate, leaves []*roster.Leave) []Candidate {
	if len(leaves) == 0 {
		return cands
	}
	byStaff := make(map[uuid.UUID][]*roster.Leave)
	for _, l := range leaves {
		byStaff[l.StaffID] = append(byStaff[l.StaffID], l)
	}

	out := cands[:0:0]
	for _, c := range cands {
		if absent(byStaff[c.StaffID], c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func absent(leaves []*roster.Leave, c Candidate) bool {
	for _, l := range leaves {
		if l.Covers(c.Date, c.Period) {
			return true
		}
	}
	return false
}
