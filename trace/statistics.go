package trace

import (
	"fmt"
	"sort"
	"strings"
)

// Statistics tallies how many times each mnemonic retired during a run,
// for a post-run performance summary.
type Statistics struct {
	Enabled bool

	total  uint64
	counts map[string]uint64
}

// NewStatistics creates an enabled statistics collector.
func NewStatistics() *Statistics {
	return &Statistics{Enabled: true, counts: make(map[string]uint64)}
}

// RecordInstruction implements vm.StatCollector.
func (s *Statistics) RecordInstruction(mnemonic string) {
	if !s.Enabled {
		return
	}
	s.total++
	s.counts[mnemonic]++
}

// Total returns the number of instructions recorded.
func (s *Statistics) Total() uint64 { return s.total }

// Counts returns a copy of the per-mnemonic tally.
func (s *Statistics) Counts() map[string]uint64 {
	out := make(map[string]uint64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Report renders a table of mnemonics sorted by descending count, ties
// broken alphabetically, followed by the running total.
func (s *Statistics) Report(format string) string {
	type row struct {
		mnemonic string
		count    uint64
	}
	rows := make([]row, 0, len(s.counts))
	for m, c := range s.counts {
		rows = append(rows, row{m, c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].mnemonic < rows[j].mnemonic
	})

	switch format {
	case "csv":
		var b strings.Builder
		fmt.Fprintln(&b, "mnemonic,count")
		for _, r := range rows {
			fmt.Fprintf(&b, "%s,%d\n", r.mnemonic, r.count)
		}
		return b.String()
	default:
		var b strings.Builder
		for _, r := range rows {
			fmt.Fprintf(&b, "%-10s %d\n", r.mnemonic, r.count)
		}
		fmt.Fprintf(&b, "total      %d\n", s.total)
		return b.String()
	}
}
