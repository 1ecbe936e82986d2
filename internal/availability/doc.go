// Package availability implements the request protocol driver.
//
// Each inbound query runs a short state machine: the access gate first, then
// the calendar busy check combined with the location flag, then a one-word
// reply over the outbound channel. The transport acknowledges receipt
// independently; the decision and reply happen off the request's critical
// path.
package availability
