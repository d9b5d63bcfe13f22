package scheduler

import "sort"

// unfilteredRoomCount stands in for the room count of sessions no room filter applies to, so they
// sort after constrained ones.
const unfilteredRoomCount = 999

// Score rates how hard a session is to place. Higher scores are placed first.
func Score(s Session) int {
	rooms := len(s.Rooms)
	if !s.RoomFiltered || rooms == 0 {
		rooms = unfilteredRoomCount
	}
	return s.Duration*100 - len(s.Teachers)*5 - rooms
}

// OrderSessions returns the sessions sorted by descending Score, keeping input order on ties.
func OrderSessions(sessions []Session) []Session {
	ordered := make([]Session, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Score(ordered[i]) > Score(ordered[j])
	})
	return ordered
}

// groupBySubject batches ordered sessions per subject. A subject's batch sits at the position of
// its hardest session and keeps its sessions in ordered sequence.
func groupBySubject(ordered []Session) [][]Session {
	index := make(map[string]int)
	var batches [][]Session
	for _, s := range ordered {
		pos, ok := index[s.Subject.ID]
		if !ok {
			pos = len(batches)
			index[s.Subject.ID] = pos
			batches = append(batches, nil)
		}
		batches[pos] = append(batches[pos], s)
	}
	return batches
}
