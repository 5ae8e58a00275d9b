// Package interval tracks the date ranges covered by previously merged
// statement batches for a single user, and answers which of them a new
// upload overlaps or sits next to. Ranges only ever grow; there is no
// delete.
package interval

import (
	"sort"
	"time"
)

// DefaultGapTolerance treats back-to-back monthly statements (e.g. one
// ending Jan 31, the next starting Feb 1) as continuous even without a
// literal date overlap.
const DefaultGapTolerance = 24 * time.Hour

// Interval is one recorded statement date range. GroupID is the statement
// batch that covered it. Intervals are derived from batch summaries and are
// not a source of truth.
type Interval struct {
	GroupID string
	Start   time.Time
	End     time.Time
}

// Index holds intervals sorted by start date so overlap queries can binary
// search instead of scanning. Not safe for concurrent use; merges for one
// user are serialized by the caller.
type Index struct {
	intervals []Interval
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Len returns the number of recorded intervals.
func (ix *Index) Len() int {
	return len(ix.intervals)
}

// Insert records an interval, keeping the slice sorted by start date.
// Intervals with End before Start are stored as given; FindOverlapping
// treats them as empty ranges.
func (ix *Index) Insert(iv Interval) {
	i := sort.Search(len(ix.intervals), func(j int) bool {
		return ix.intervals[j].Start.After(iv.Start)
	})
	ix.intervals = append(ix.intervals, Interval{})
	copy(ix.intervals[i+1:], ix.intervals[i:])
	ix.intervals[i] = iv
}

// FindOverlapping returns the group IDs of every interval that overlaps
// [start, end] or lies within gapTolerance of it. Pass a zero gapTolerance
// to require literal overlap; DefaultGapTolerance groups adjacent monthly
// statements.
//
// The query range is widened by the tolerance on both sides, then a binary
// search finds the first candidate whose start could still matter; the scan
// stops at the first interval starting past the widened end. Intervals are
// sorted by start but not by end, so the scan must continue through
// candidates with early starts and long tails.
func (ix *Index) FindOverlapping(start, end time.Time, gapTolerance time.Duration) map[string]struct{} {
	groups := make(map[string]struct{})
	if len(ix.intervals) == 0 || end.Before(start) {
		return groups
	}

	lo := start.Add(-gapTolerance)
	hi := end.Add(gapTolerance)

	// First interval that starts after the widened end: nothing from there
	// on can overlap.
	cut := sort.Search(len(ix.intervals), func(j int) bool {
		return ix.intervals[j].Start.After(hi)
	})

	for _, iv := range ix.intervals[:cut] {
		if iv.End.Before(iv.Start) {
			continue
		}
		// Overlap test against the widened range: iv.End >= lo.
		if !iv.End.Before(lo) {
			groups[iv.GroupID] = struct{}{}
		}
	}
	return groups
}
