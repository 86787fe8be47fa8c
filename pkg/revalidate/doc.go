// Package revalidate signals that rendered views are stale after a mutation.
//
// The signal is a hint. Services call Signal after the transaction commits;
// a failed publish is logged and the request still succeeds.
package revalidate
