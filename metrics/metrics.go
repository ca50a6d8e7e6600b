// Package metrics exposes lead queue instrumentation. The coordinator depends
// on the Collector interface; Nop is used when metrics are not wired.
package metrics

// Collector receives lead queue measurements.
type Collector interface {
	// ObserveOperation records one coordinator operation and its outcome
	// ("ok" or an error kind).
	ObserveOperation(op, result string, seconds float64)
	// IncAssignment counts leads handed to a counselor by mode
	// (manual, pull, bulk, auto, transfer, resume).
	IncAssignment(mode string)
	IncCapacityRejection()
	SetQueueSize(institutionID string, size int)
	SetQueueInSync(institutionID string, inSync bool)
	IncDeadLetter(topic string)
}

// Nop discards everything.
type Nop struct{}

var _ Collector = Nop{}

func (Nop) ObserveOperation(string, string, float64) {}
func (Nop) IncAssignment(string)                     {}
func (Nop) IncCapacityRejection()                    {}
func (Nop) SetQueueSize(string, int)                 {}
func (Nop) SetQueueInSync(string, bool)              {}
func (Nop) IncDeadLetter(string)                     {}
