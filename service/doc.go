// Package service orchestrates the core components of the quote
// board — epoch domain, board, outbox, and memory pool.
//
// It is the single write entry point: exactly one goroutine runs the
// writer loop, and read queries go through pooled epoch readers.
package service
