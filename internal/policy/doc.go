// Package policy implements the access gate for inbound availability
// queries: a fixed allow list of requester phone numbers checked with an
// exact membership test. Requests from numbers not on the list are ignored
// without a reply.
package policy
