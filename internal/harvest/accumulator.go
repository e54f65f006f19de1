package harvest

// Accumulator collects result records in processing order. It is owned by a
// single run loop and is not safe for concurrent use.
type Accumulator struct {
	records []ResultRecord
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{records: make([]ResultRecord, 0)}
}

// Append adds a record.
func (a *Accumulator) Append(record ResultRecord) {
	a.records = append(a.records, record)
}

// Len returns the number of records collected so far.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Records returns a copy of the collected records.
func (a *Accumulator) Records() []ResultRecord {
	out := make([]ResultRecord, len(a.records))
	copy(out, a.records)
	return out
}
