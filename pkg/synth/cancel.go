package synth

import(
	"sync/atomic"
)

// A CancelToken is shared between whoever wants to stop a run, and the
// integrator, which looks at it once per row.
type CancelToken struct {
	cancelled atomic.Bool
}

func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel never blocks, and calling it more than once is fine.
func (ct *CancelToken)Cancel()          { ct.cancelled.Store(true) }
func (ct *CancelToken)Cancelled() bool  { return ct.cancelled.Load() }
