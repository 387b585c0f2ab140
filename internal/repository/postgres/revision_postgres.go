package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"diarium/internal/model"
	"diarium/internal/repository"
)

// revisionColumns is the scan order used by every revision query.
const revisionColumns = `r.id, r.tenant, r.registration_number, r.revision_number, r.description, r.document_type, r.confidential, r.legal_citation, r.archived, r.created_by, r.created_at`

// RevisionPostgres is a PostgreSQL implementation of
// repository.RevisionRepository. It uses database/sql with parameterized
// queries and contains no business logic.
type RevisionPostgres struct {
	db *sql.DB
}

// NewRevisionPostgres creates a new RevisionPostgres repository.
func NewRevisionPostgres(db *sql.DB) *RevisionPostgres {
	return &RevisionPostgres{db: db}
}

var _ repository.RevisionRepository = (*RevisionPostgres)(nil)

// Insert writes the revision row plus its metadata and attachment rows in one
// transaction. Nothing is visible to readers unless all of it commits.
func (r *RevisionPostgres) Insert(ctx context.Context, rev *model.Revision) (*model.Revision, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const qRev = `
		INSERT INTO revisions (id, tenant, registration_number, revision_number, description, document_type, confidential, legal_citation, archived, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, qRev,
		rev.ID,
		rev.Tenant,
		rev.RegistrationNumber,
		rev.RevisionNumber,
		rev.Description,
		rev.DocumentType,
		rev.Confidential,
		rev.LegalCitation,
		rev.Archived,
		rev.CreatedBy,
		rev.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateRevision
		}
		return nil, err
	}

	const qMeta = `INSERT INTO revision_metadata (revision_id, key, value) VALUES ($1, $2, $3)`
	for _, m := range rev.Metadata {
		if _, err := tx.ExecContext(ctx, qMeta, rev.ID, m.Key, m.Value); err != nil {
			return nil, err
		}
	}

	const qAtt = `INSERT INTO attachments (id, revision_id, filename, content_type, size, storage_path) VALUES ($1, $2, $3, $4, $5, $6)`
	for _, a := range rev.Attachments {
		if _, err := tx.ExecContext(ctx, qAtt, a.ID, rev.ID, a.Filename, a.ContentType, a.Size, a.StoragePath); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rev, nil
}

// FindLatest fetches the highest in-scope revision of a registration number.
func (r *RevisionPostgres) FindLatest(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope) (*model.Revision, error) {
	where := And(
		Frag("r.tenant = ?", tenant),
		Frag("r.registration_number = ?", regNumber),
		scopeFragment("r.confidential", scope),
	)
	return r.findOne(ctx, where, "r.revision_number DESC")
}

// FindByNumber fetches one exact in-scope revision.
func (r *RevisionPostgres) FindByNumber(ctx context.Context, tenant, regNumber string, revisionNumber int, scope model.ConfidentialityScope) (*model.Revision, error) {
	where := And(
		Frag("r.tenant = ?", tenant),
		Frag("r.registration_number = ?", regNumber),
		Frag("r.revision_number = ?", revisionNumber),
		scopeFragment("r.confidential", scope),
	)
	return r.findOne(ctx, where, "")
}

func (r *RevisionPostgres) findOne(ctx context.Context, where Fragment, orderBy string) (*model.Revision, error) {
	pq := repository.PageQuery{Limit: 1, Offset: 0}
	query, args := buildQuery("SELECT "+revisionColumns+" FROM revisions r", where, orderBy, &pq)

	row := r.db.QueryRowContext(ctx, query, args...)
	rev, err := scanRevision(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, []*model.Revision{rev}); err != nil {
		return nil, err
	}
	return rev, nil
}

// ListByRegistration returns one page of a document's in-scope revisions in
// revision-number order.
func (r *RevisionPostgres) ListByRegistration(ctx context.Context, tenant, regNumber string, scope model.ConfidentialityScope, descending bool, pq repository.PageQuery) (*repository.PageResult[model.Revision], error) {
	where := And(
		Frag("r.tenant = ?", tenant),
		Frag("r.registration_number = ?", regNumber),
		scopeFragment("r.confidential", scope),
	)
	orderBy := "r.revision_number ASC"
	if descending {
		orderBy = "r.revision_number DESC"
	}
	return r.queryPage(ctx, where, orderBy, pq)
}

// Search executes a criteria query against one tenant's revisions.
func (r *RevisionPostgres) Search(ctx context.Context, tenant string, q repository.SearchQuery) (*repository.PageResult[model.Revision], error) {
	where := searchWhere(tenant, q)
	return r.queryPage(ctx, where, orderByClause(q.Sort), q.Page)
}

func (r *RevisionPostgres) queryPage(ctx context.Context, where Fragment, orderBy string, pq repository.PageQuery) (*repository.PageResult[model.Revision], error) {
	countQuery, countArgs := buildQuery("SELECT COUNT(*) FROM revisions r", where, "", nil)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, err
	}

	query, args := buildQuery("SELECT "+revisionColumns+" FROM revisions r", where, orderBy, &pq)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Revision, 0)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	refs := make([]*model.Revision, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := r.loadChildren(ctx, refs); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Revision]{Items: items, Total: total}, nil
}

// loadChildren hydrates metadata entries and attachments for a batch of
// revisions with one query per table.
func (r *RevisionPostgres) loadChildren(ctx context.Context, revs []*model.Revision) error {
	if len(revs) == 0 {
		return nil
	}
	ids := make([]string, len(revs))
	byID := make(map[string]*model.Revision, len(revs))
	for i, rev := range revs {
		ids[i] = rev.ID
		byID[rev.ID] = rev
	}

	metaQuery, metaArgs := buildQuery(
		"SELECT m.revision_id, m.key, m.value FROM revision_metadata m",
		In("m.revision_id", ids), "m.key ASC, m.value ASC", nil)
	rows, err := r.db.QueryContext(ctx, metaQuery, metaArgs...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var revID string
		var entry model.MetadataEntry
		if err := rows.Scan(&revID, &entry.Key, &entry.Value); err != nil {
			return err
		}
		if rev, ok := byID[revID]; ok {
			rev.Metadata = append(rev.Metadata, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	attQuery, attArgs := buildQuery(
		"SELECT a.revision_id, a.id, a.filename, a.content_type, a.size, a.storage_path FROM attachments a",
		In("a.revision_id", ids), "a.filename ASC", nil)
	attRows, err := r.db.QueryContext(ctx, attQuery, attArgs...)
	if err != nil {
		return err
	}
	defer attRows.Close()
	for attRows.Next() {
		var revID string
		var att model.FileAttachment
		if err := attRows.Scan(&revID, &att.ID, &att.Filename, &att.ContentType, &att.Size, &att.StoragePath); err != nil {
			return err
		}
		if rev, ok := byID[revID]; ok {
			rev.Attachments = append(rev.Attachments, att)
		}
	}
	return attRows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (*model.Revision, error) {
	var rev model.Revision
	if err := row.Scan(
		&rev.ID,
		&rev.Tenant,
		&rev.RegistrationNumber,
		&rev.RevisionNumber,
		&rev.Description,
		&rev.DocumentType,
		&rev.Confidential,
		&rev.LegalCitation,
		&rev.Archived,
		&rev.CreatedBy,
		&rev.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rev, nil
}

// scopeFragment narrows a query to the confidentiality states the scope may
// observe. A scope spanning both states constrains nothing.
func scopeFragment(column string, scope model.ConfidentialityScope) Fragment {
	if scope.IncludesConfidential() {
		return Fragment{}
	}
	return Frag(column + " = FALSE")
}

// searchWhere translates a search query into one WHERE fragment. Free-text and
// structured criteria compose with AND; the free-text term fans out with OR
// across the searchable fields.
func searchWhere(tenant string, q repository.SearchQuery) Fragment {
	frags := []Fragment{
		Frag("r.tenant = ?", tenant),
		scopeFragment("r.confidential", q.Scope),
	}

	if term := strings.TrimSpace(q.Criteria.Text); term != "" {
		p := likePattern(term)
		frags = append(frags, Or(
			Frag("r.created_by ILIKE ? ESCAPE '\\'", p),
			Frag("r.tenant ILIKE ? ESCAPE '\\'", p),
			Frag("r.registration_number ILIKE ? ESCAPE '\\'", p),
			Frag("EXISTS (SELECT 1 FROM attachments a WHERE a.revision_id = r.id AND (a.filename ILIKE ? ESCAPE '\\' OR a.content_type ILIKE ? ESCAPE '\\'))", p, p),
			Frag("EXISTS (SELECT 1 FROM revision_metadata m WHERE m.revision_id = r.id AND (m.key ILIKE ? ESCAPE '\\' OR m.value ILIKE ? ESCAPE '\\'))", p, p),
		))
	}

	frags = append(frags, In("r.document_type", q.Criteria.DocumentTypes))

	if q.Criteria.Archived != nil {
		frags = append(frags, Frag("r.archived = ?", *q.Criteria.Archived))
	}

	for _, pred := range q.Criteria.Metadata {
		keyFrag := Fragment{}
		if pred.Key != "" {
			keyFrag = Frag("m.key = ?", pred.Key)
		}
		if len(pred.MatchesAny) > 0 {
			frags = append(frags, metadataExists(And(keyFrag, In("m.value", pred.MatchesAny))))
		}
		// matchesAll: every required value must be present on some entry,
		// not necessarily the same one.
		for _, v := range pred.MatchesAll {
			frags = append(frags, metadataExists(And(keyFrag, Frag("m.value = ?", v))))
		}
	}

	if q.OnlyLatest {
		// "Latest" is relative to the confidentiality scope: when the true
		// latest revision is out of scope, the highest in-scope one wins.
		sub := "SELECT MAX(r2.revision_number) FROM revisions r2 WHERE r2.tenant = r.tenant AND r2.registration_number = r.registration_number"
		if !q.Scope.IncludesConfidential() {
			sub += " AND r2.confidential = FALSE"
		}
		frags = append(frags, Frag("r.revision_number = ("+sub+")"))
	}

	return And(frags...)
}

func metadataExists(inner Fragment) Fragment {
	cond := And(Frag("m.revision_id = r.id"), inner)
	return Frag("EXISTS (SELECT 1 FROM revision_metadata m WHERE "+cond.SQL+")", cond.Args...)
}

// orderByClause maps whitelisted sort fields to columns, always ending on the
// surrogate id so pagination stays stable across calls.
func orderByClause(sort []repository.SortField) string {
	if len(sort) == 0 {
		return "r.created_at DESC, r.id DESC"
	}
	parts := make([]string, 0, len(sort)+1)
	for _, s := range sort {
		if !repository.SortableFields[s.Field] {
			continue
		}
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		parts = append(parts, "r."+s.Field+dir)
	}
	parts = append(parts, "r.id ASC")
	return strings.Join(parts, ", ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
