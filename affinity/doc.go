// Package affinity places compute worker threads on distinct physical cores.
//
// A Manager is built once from a parsed topology. It reads the allowed
// processor mask from the OS, keeps one logical processor per physical core,
// and pins the calling thread on request. Binding is skipped entirely when the
// user configured threading through any of MonitoredEnvVars, or while GPU
// execution is enabled.
//
// Nothing in this package returns an error to the caller: a failed OS query
// falls back to every discovered processor, and a failed bind leaves the
// thread where it was. Pinning is a performance hint, never a requirement.
//
// # Basic Usage
//
//	m := affinity.New(topology.Discover())
//	pool.ApplyAffinity(m, 0) // worker count = physical cores
//	wp := pool.NewWorkerPool[Job, Out](pool.WithAffinity(m))
//
//	go func() {
//	    m.BindAuxiliaryThreadIfPossible()
//	    runHousekeeping()
//	}()
//
// On platforms other than Linux the topology is empty and the OS adapter is a
// stub, so every bind call is a no-op.
package affinity
