// Package export cuts closed segments out of the downloaded media with a
// stream copy and runs each cut in the background.
//
// Every Export call starts exactly one goroutine and registers its Task.
// Wait blocks until every registered task has finished and returns their
// failures combined into one error.
package export
