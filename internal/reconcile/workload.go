package reconcile

import (
	"sort"

	dom "taskboard/internal/domain"
)

// OverloadThreshold is the task count above which a member is flagged.
const OverloadThreshold = 3

type MemberLoad struct {
	User  dom.UserRef
	Tasks int
}

func (m MemberLoad) Overloaded() bool { return m.Tasks > OverloadThreshold }

type Workload struct {
	Members    []MemberLoad
	Unassigned int
}

// Workload counts tasks per member. Every user in members is listed, including
// those with nothing assigned; assignees missing from members are added.
// Members are sorted by username.
func (v *View) Workload(members []dom.UserRef) Workload {
	v.mu.RLock()
	defer v.mu.RUnlock()

	counts := make(map[int64]*MemberLoad, len(members))
	for _, u := range members {
		if _, ok := counts[u.ID]; !ok {
			counts[u.ID] = &MemberLoad{User: u}
		}
	}
	var w Workload
	for _, t := range v.tasks {
		if t.AssignedTo == nil {
			w.Unassigned++
			continue
		}
		m, ok := counts[t.AssignedTo.ID]
		if !ok {
			m = &MemberLoad{User: *t.AssignedTo}
			counts[t.AssignedTo.ID] = m
		}
		m.Tasks++
	}
	w.Members = make([]MemberLoad, 0, len(counts))
	for _, m := range counts {
		w.Members = append(w.Members, *m)
	}
	sort.Slice(w.Members, func(i, j int) bool {
		a, b := w.Members[i].User, w.Members[j].User
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return a.ID < b.ID
	})
	return w
}
