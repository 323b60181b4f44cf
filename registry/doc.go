// Package registry maps component identities to their Runners.
//
// A component's Runner outlives the component instance: on
// reconstruction the new instance attaches under the same Key and picks
// up the old Runner with its in-flight tasks, cache and buffered
// deliveries intact. A Runner left detached past the TTL is evicted,
// which is the only path that destroys one.
//
// The registry owns the worker pool and delivery loop all of its
// Runners share.
package registry
