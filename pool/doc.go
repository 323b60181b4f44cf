// Package pool provides the two execution contexts of the task engine.
//
// Pool is a set of interchangeable worker goroutines that run task bodies.
// Bodies are expected to block (they wrap synchronous I/O); when all
// workers are busy the pool overflows into a transient goroutine rather
// than queueing behind a blocked body, so submission never stalls.
//
// Loop is the delivery context: a single dedicated goroutine that plays
// the role of a component's main thread. Every completion callback is
// marshalled onto it, which serializes deliveries and keeps callbacks off
// arbitrary workers. Its queue is unbounded so a callback may post more
// work re-entrantly without deadlocking the loop.
package pool
