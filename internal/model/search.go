package model

// ConfidentialityScope is the set of confidentiality states a read is allowed
// to observe: {false} for public-only callers, {false,true} when confidential
// records were explicitly requested.
type ConfidentialityScope struct {
	includeConfidential bool
}

// ScopeFor converts the "include confidential" request flag into a scope.
func ScopeFor(includeConfidential bool) ConfidentialityScope {
	return ConfidentialityScope{includeConfidential: includeConfidential}
}

// Contains reports whether a revision with the given confidentiality state is
// visible under this scope.
func (s ConfidentialityScope) Contains(confidential bool) bool {
	return !confidential || s.includeConfidential
}

// IncludesConfidential reports whether the scope spans both states.
func (s ConfidentialityScope) IncludesConfidential() bool {
	return s.includeConfidential
}

// SearchCriteria describes one search request. Text and the structured fields
// compose: every populated part must hold for a revision to match.
type SearchCriteria struct {
	// Text is a free-text term matched case-insensitively against creator,
	// tenant, registration number, attachment filenames and MIME types, and
	// metadata keys and values. '*' matches any run of characters; there is
	// no escape for a literal '*'.
	Text string `json:"text,omitempty"`

	// DocumentTypes restricts matches to revisions whose type code is in the
	// list. Empty means any type.
	DocumentTypes []string `json:"document_types,omitempty"`

	// Metadata predicates are AND-combined.
	Metadata []MetadataPredicate `json:"metadata,omitempty"`

	// Archived filters on the archive flag when set.
	Archived *bool `json:"archived,omitempty"`
}

// MetadataPredicate matches revisions through their metadata entries. An empty
// Key matches entries under any key. MatchesAny requires at least one entry
// whose value is in the set; MatchesAll requires every value in the set to be
// present on some entry. Both conditions apply when both are given.
type MetadataPredicate struct {
	Key        string   `json:"key,omitempty"`
	MatchesAny []string `json:"matches_any,omitempty"`
	MatchesAll []string `json:"matches_all,omitempty"`
}

// IsEmpty reports whether the predicate constrains anything.
func (p MetadataPredicate) IsEmpty() bool {
	return len(p.MatchesAny) == 0 && len(p.MatchesAll) == 0
}
