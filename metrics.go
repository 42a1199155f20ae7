package authlink

// Metrics receives counters from the linker and the token lifecycle.
type Metrics interface {
	TokenIssued()
	TokenRejected(reason string)
	TokensRevoked(count int)
	UsageRecorded()
	UsageFailed()
	AuthLinked(outcome string)
	AttemptRecorded(successful bool)
}

// Link outcomes reported through Metrics.AuthLinked.
const (
	LinkOutcomeCreated = "created"
	LinkOutcomeMerged  = "merged"
	LinkOutcomeLinked  = "linked"
	LinkOutcomeNoop    = "noop"
)

type noopMetrics struct{}

func (noopMetrics) TokenIssued()         {}
func (noopMetrics) TokenRejected(string) {}
func (noopMetrics) TokensRevoked(int)    {}
func (noopMetrics) UsageRecorded()       {}
func (noopMetrics) UsageFailed()         {}
func (noopMetrics) AuthLinked(string)    {}
func (noopMetrics) AttemptRecorded(bool) {}

// NoopMetrics discards every measurement.
func NoopMetrics() Metrics {
	return noopMetrics{}
}
