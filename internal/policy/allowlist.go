package policy

// AllowList is the fixed set of requester identifiers permitted to query
// availability. It is loaded once at startup and immutable for the process
// lifetime.
type AllowList struct {
	members map[string]struct{}
}

// NewAllowList creates an AllowList from the given identifiers.
// Identifiers are taken verbatim; callers normalize at the configuration
// boundary if they need to.
func NewAllowList(ids []string) *AllowList {
	members := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		members[id] = struct{}{}
	}
	return &AllowList{members: members}
}

// Allowed reports whether the requester identifier is on the allow list.
// The comparison is an exact, case-sensitive string match; an empty
// identifier is never allowed.
func (l *AllowList) Allowed(id string) bool {
	if l == nil || id == "" {
		return false
	}
	_, ok := l.members[id]
	return ok
}

// Size returns the number of identifiers on the allow list.
func (l *AllowList) Size() int {
	if l == nil {
		return 0
	}
	return len(l.members)
}
