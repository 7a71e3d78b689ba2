// Package correlation matches replies to the requests that are waiting for
// them. A Table holds one single-fire Slot per outstanding request id.
package correlation
