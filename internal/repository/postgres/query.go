package postgres

import (
	"fmt"
	"strings"

	"diarium/internal/repository"
)

// Fragment is one composable piece of a WHERE clause. Fragment SQL uses '?'
// argument markers; they are rewritten to PostgreSQL positional placeholders
// when the statement is assembled, so fragments stay order-independent until
// then. User input only ever travels through Args.
type Fragment struct {
	SQL  string
	Args []any
}

// Frag builds a fragment from raw SQL and its arguments.
func Frag(sql string, args ...any) Fragment {
	return Fragment{SQL: sql, Args: args}
}

// Empty reports whether the fragment contributes nothing.
func (f Fragment) Empty() bool {
	return f.SQL == ""
}

// And combines fragments with AND, skipping empty ones.
func And(frags ...Fragment) Fragment {
	return combine(frags, " AND ")
}

// Or combines fragments with OR, skipping empty ones.
func Or(frags ...Fragment) Fragment {
	return combine(frags, " OR ")
}

func combine(frags []Fragment, sep string) Fragment {
	kept := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if !f.Empty() {
			kept = append(kept, f)
		}
	}
	switch len(kept) {
	case 0:
		return Fragment{}
	case 1:
		return kept[0]
	}
	parts := make([]string, len(kept))
	var args []any
	for i, f := range kept {
		parts[i] = f.SQL
		args = append(args, f.Args...)
	}
	return Fragment{SQL: "(" + strings.Join(parts, sep) + ")", Args: args}
}

// In builds a "column IN (...)" fragment. An empty value set yields an empty
// fragment (no constraint).
func In(column string, values []string) Fragment {
	if len(values) == 0 {
		return Fragment{}
	}
	markers := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		markers[i] = "?"
		args[i] = v
	}
	return Fragment{SQL: column + " IN (" + strings.Join(markers, ", ") + ")", Args: args}
}

// buildQuery assembles a full statement from a SELECT head, an optional WHERE
// fragment, an optional ORDER BY clause, and optional pagination, rewriting
// every '?' marker to $1..$n.
func buildQuery(selectSQL string, where Fragment, orderBy string, pq *repository.PageQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(selectSQL)
	args := make([]any, 0, len(where.Args)+2)
	if !where.Empty() {
		sb.WriteString(" WHERE ")
		sb.WriteString(where.SQL)
		args = append(args, where.Args...)
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	if pq != nil {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, pq.Limit, pq.Offset)
	}
	return numberPlaceholders(sb.String()), args
}

// numberPlaceholders rewrites '?' markers to $1..$n. Fragments never carry a
// literal question mark, so a plain scan is sufficient.
func numberPlaceholders(sql string) string {
	var sb strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// likePattern translates a free-text search term into an ILIKE pattern:
// '*' matches any run of characters, everything else is literal. There is no
// escape for a literal '*'.
func likePattern(term string) string {
	var sb strings.Builder
	for _, r := range term {
		switch r {
		case '*':
			sb.WriteByte('%')
		case '%', '_', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
