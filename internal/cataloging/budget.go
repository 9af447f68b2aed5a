package cataloging

// FailureBudget counts provider-level failures within one batch run.
// It is only touched by the sequential item loop.
type FailureBudget struct {
	ceiling int
	count   int
}

func NewFailureBudget(ceiling int) *FailureBudget {
	if ceiling < 1 {
		ceiling = 1
	}
	return &FailureBudget{ceiling: ceiling}
}

func (b *FailureBudget) RecordFailure() {
	b.count++
}

// ShouldAbort reports whether the ceiling has been reached.
func (b *FailureBudget) ShouldAbort() bool {
	return b.count >= b.ceiling
}

func (b *FailureBudget) Count() int {
	return b.count
}

func (b *FailureBudget) Ceiling() int {
	return b.ceiling
}
