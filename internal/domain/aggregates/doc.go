// Package aggregates declares the recipe version store: the write boundary
// that owns a recipe's version counter and history, and the error codes every
// write reports.
package aggregates
