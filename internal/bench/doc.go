// Package bench keeps the inventory of open instruments and serializes
// access to each of them.
//
// A Session is not safe for concurrent use, so every operation on an
// instrument goes through Manager.Do, which holds that instrument's lock
// for the duration of the callback. Different instruments proceed in
// parallel.
package bench
