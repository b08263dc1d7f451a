package staffing

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

type needKey struct {
	skill uuid.UUID
	role  uuid.UUID
}

// ComputeNeeds derives the staffing view of one unit. Only active
// assignments count. Tiers of the unit's department whose range contains the
// doctor count contribute their quantity to their (skill, role) pair; the gap
// is never negative.
func ComputeNeeds(unit *WorkUnit, assignments []*Assignment, tiers []*Tier) UnitStaffing {
	view := UnitStaffing{Unit: unit, Doctors: []*Assignment{}, Secretaries: []*Assignment{}, Needs: []Need{}}

	for _, a := range assignments {
		if !a.WorkUnitID.Valid || a.WorkUnitID.UUID != unit.ID {
			continue
		}
		switch a.Kind {
		case AssignDoctor:
			view.Doctors = append(view.Doctors, a)
			if a.Active() {
				view.DoctorCount++
			}
		case AssignSecretary:
			view.Secretaries = append(view.Secretaries, a)
		}
	}

	needed := make(map[needKey]int)
	for _, t := range tiers {
		if t.DepartmentID != unit.DepartmentID || !t.Matches(view.DoctorCount) {
			continue
		}
		needed[needKey{skill: t.SkillID, role: t.RoleID}] += t.Quantity
	}

	keys := make([]needKey, 0, len(needed))
	for k := range needed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := bytes.Compare(keys[i].skill[:], keys[j].skill[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(keys[i].role[:], keys[j].role[:]) < 0
	})

	for _, k := range keys {
		n := Need{SkillID: k.skill, RoleID: k.role, Needed: needed[k]}
		for _, a := range view.Secretaries {
			if a.Active() && matchesNeed(a, k) {
				n.Assigned++
			}
		}
		n.Gap = n.Needed - n.Assigned
		if n.Gap < 0 {
			n.Gap = 0
		}
		view.Needs = append(view.Needs, n)
	}
	return view
}

func matchesNeed(a *Assignment, k needKey) bool {
	return a.SkillID != nil && *a.SkillID == k.skill && a.RoleID != nil && *a.RoleID == k.role
}

// ComputeStaffing evaluates every unit against its department's tiers.
func ComputeStaffing(units []*WorkUnit, assignments []*Assignment, tiers []*Tier) []UnitStaffing {
	byUnit := make(map[uuid.UUID][]*Assignment)
	for _, a := range assignments {
		if a.WorkUnitID.Valid {
			byUnit[a.WorkUnitID.UUID] = append(byUnit[a.WorkUnitID.UUID], a)
		}
	}
	byDept := make(map[uuid.UUID][]*Tier)
	for _, t := range tiers {
		byDept[t.DepartmentID] = append(byDept[t.DepartmentID], t)
	}

	out := make([]UnitStaffing, 0, len(units))
	for _, u := range units {
		out = append(out, ComputeNeeds(u, byUnit[u.ID], byDept[u.DepartmentID]))
	}
	return out
}
