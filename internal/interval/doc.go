// Package interval reconstructs tool window usage intervals from ordered
// open/close events and analyzes implicit-close transitions between them.
//
// Reconstruction is a single forward pass per user over a two-state machine:
//
//	Closed  --opened(ot)-->  Open(ot)     remember open_ts
//	Closed  --closed----->   Closed       orphan close, ignored
//	Open    --closed(ts)-->  Closed       emit [open_ts, ts]
//	Open    --opened(ot2)->  Open(ot2)    emit [open_ts, ts] as implicit close
//	Open    --end of log-->               emit censored interval
//
// Completed intervals with a non-positive duration are dropped. Users are
// independent, so ReconstructAll fans users out over a worker pool while each
// user's stream stays strictly sequential.
package interval
