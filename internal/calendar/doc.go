// Package calendar resolves the operator's current busy/free state from the
// Google Calendar API.
//
// The Resolver looks at events whose start time falls in a short forward
// window, skips cancelled events, and reports busy as soon as one event does
// not mark its time as transparent. Every failure path collapses to busy:
// the system must never falsely report availability.
package calendar
