// Package recur expands recurrence patterns into concrete occurrences.
//
// Expansion is a pipeline of pure steps: a Generator lists wall-clock
// candidates block by block, a Resolver maps each onto an instant in the
// event's zone (including across DST gaps and overlaps), and a Window clips
// the ascending stream to [From, To) and stops it early. Nothing is cached
// between calls.
package recur
