// Package aggregates implements the recipe version store on gorm. Writes are
// serialized per recipe in-process, run in a single transaction and classify
// storage failures into domain aggregate error codes.
package aggregates
