package sessions

import "sort"

// Reconcile retains the sessions whose path appears in listed, the set
// of paths from the current directory listing. The result is a fresh
// slice sorted by path so consumers never observe partial updates.
func Reconcile(snapshot []Session, listed map[string]struct{}) []Session {
	kept := make([]Session, 0, len(snapshot))
	for _, s := range snapshot {
		if _, ok := listed[s.Path]; ok {
			kept = append(kept, s)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Path != kept[j].Path {
			return kept[i].Path < kept[j].Path
		}
		return kept[i].ID < kept[j].ID
	})
	return kept
}
