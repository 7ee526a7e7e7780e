package schedule

import (
	"facade_server/core/domain"
)

// entry is a job's slot in the timeline. index is -1 once the job has
// left the heap.
type entry struct {
	job   *domain.ScheduledJob
	index int
}

// timeline is a min-heap of pending jobs ordered by fire-time, then by
// registration order. It implements heap.Interface; callers hold the
// scheduler lock.
type timeline []*entry

func (t timeline) Len() int { return len(t) }

func (t timeline) Less(i, j int) bool {
	a, b := t[i].job, t[j].job
	if a.FireAt.Equal(b.FireAt) {
		return a.Seq < b.Seq
	}
	return a.FireAt.Before(b.FireAt)
}

func (t timeline) Swap(i, j int) {
	t[i], t[j] = t[j], t[i]
	t[i].index = i
	t[j].index = j
}

func (t *timeline) Push(x any) {
	e := x.(*entry)
	e.index = len(*t)
	*t = append(*t, e)
}

func (t *timeline) Pop() any {
	old := *t
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*t = old[:n-1]
	return e
}

func (t timeline) peek() *entry {
	if len(t) == 0 {
		return nil
	}
	return t[0]
}
