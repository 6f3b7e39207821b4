package apimodule

import "sync/atomic"

// Run is the state shared by every resolution of one run.
type Run struct {
	pluginInserted atomic.Bool
}

// NewRun starts a run.
func NewRun() *Run {
	return &Run{}
}

// PluginInserted reports whether skyapi's own plugin has been scheduled for
// insertion into a config module during this run.
func (r *Run) PluginInserted() bool {
	return r.pluginInserted.Load()
}

// claimInsertion reports true exactly once per run.
func (r *Run) claimInsertion() bool {
	return r.pluginInserted.CompareAndSwap(false, true)
}
