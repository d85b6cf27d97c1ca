package schedule

import (
	"sort"
)

// ConflictSet holds the ids of events whose effective intervals overlap at
// least one other event.
type ConflictSet map[string]struct{}

func (c ConflictSet) Has(id string) bool {
	_, ok := c[id]
	return ok
}

func (c ConflictSet) Len() int { return len(c) }

// IDs returns the members in sorted order.
func (c ConflictSet) IDs() []string {
	out := make([]string, 0, len(c))
	for id := range c {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type span struct {
	id string
	iv Interval
}

// Detect computes the conflict set of s. Events whose placement cannot be
// parsed, and empty or inverted intervals, never conflict.
//
// Intervals are grouped per day and swept in start order, keeping the spans
// still open at each start; every open span overlaps the one being added.
func Detect(s Snapshot) ConflictSet {
	byDay := make(map[int][]span)
	for _, id := range s.IDs() {
		slot, err := s.Effective(id)
		if err != nil {
			continue
		}
		iv, err := slot.Interval()
		if err != nil || iv.Empty() {
			continue
		}
		byDay[iv.Day] = append(byDay[iv.Day], span{id: id, iv: iv})
	}

	out := ConflictSet{}
	for _, spans := range byDay {
		sort.SliceStable(spans, func(i, j int) bool {
			return spans[i].iv.Start < spans[j].iv.Start
		})

		var open []span
		for _, cur := range spans {
			kept := open[:0]
			for _, o := range open {
				if o.iv.End > cur.iv.Start {
					kept = append(kept, o)
				}
			}
			open = kept

			if len(open) > 0 {
				out[cur.id] = struct{}{}
				for _, o := range open {
					out[o.id] = struct{}{}
				}
			}
			open = append(open, cur)
		}
	}
	return out
}
