package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/database"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// MetadataRepository is the generic entity and relationship store the
// governance services are built on.
//
// Lookups by GUID return nil, nil when nothing is found. Mutations of a missing
// element return apperrors.ErrNotFound. DeleteEntity removes the entity, every
// relationship it is an end of, and every entity anchored to it (recursively).
type MetadataRepository interface {
	// IsActive reports whether the repository can serve requests.
	IsActive() bool
	// MetadataCollection identifies the store the caller is connected to.
	MetadataCollection(ctx context.Context) (*models.MetadataCollection, error)

	AddEntity(ctx context.Context, e *models.NewEntity) (uuid.UUID, error)
	UpdateEntityProperties(ctx context.Context, guid uuid.UUID, props *models.PropertyBag, updatedBy string) error
	DeleteEntity(ctx context.Context, guid uuid.UUID) error
	GetEntity(ctx context.Context, guid uuid.UUID) (*models.Entity, error)
	FindEntities(ctx context.Context, q models.EntityQuery) ([]*models.Entity, error)

	AddRelationship(ctx context.Context, r *models.NewRelationship) (uuid.UUID, error)
	// UpdateRelationship applies props and, when window is non-nil, replaces the
	// effectivity window.
	UpdateRelationship(ctx context.Context, guid uuid.UUID, props *models.PropertyBag, window *models.EffectivityWindow, updatedBy string) error
	RemoveRelationship(ctx context.Context, guid uuid.UUID) error
	GetRelationship(ctx context.Context, guid uuid.UUID) (*models.Relationship, error)
	// GetRelationshipsForEntity lists relationships of relType (all types when
	// empty) with guid at the requested end, oldest first.
	GetRelationshipsForEntity(ctx context.Context, guid uuid.UUID, relType string, dir models.Direction) ([]*models.Relationship, error)
}

type metadataRepository struct{}

// NewMetadataRepository creates a PostgreSQL MetadataRepository. The tenant
// scope (and with it the server name) is taken from the context of each call.
func NewMetadataRepository() MetadataRepository {
	return &metadataRepository{}
}

var _ MetadataRepository = (*metadataRepository)(nil)

const entityColumns = `
	guid, type_name, properties, anchor_guid, external_source_guid, external_source_name,
	version, created_by, COALESCE(updated_by, ''), created_at, updated_at`

const relationshipColumns = `
	r.guid, r.type_name, r.end1_guid, e1.type_name, r.end2_guid, e2.type_name,
	r.properties, r.effective_from, r.effective_to, r.external_source_guid, r.external_source_name,
	r.version, r.created_by, COALESCE(r.updated_by, ''), r.created_at, r.updated_at`

const relationshipFrom = `
	FROM gov_relationships r
	JOIN gov_entities e1 ON e1.guid = r.end1_guid
	JOIN gov_entities e2 ON e2.guid = r.end2_guid`

func (r *metadataRepository) IsActive() bool {
	return true
}

func (r *metadataRepository) MetadataCollection(ctx context.Context) (*models.MetadataCollection, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	var server string
	err := scope.Conn.QueryRow(ctx, "SELECT COALESCE(current_setting('app.current_server', true), '')").Scan(&server)
	if err != nil {
		return nil, wrapQueryError(err, "failed to read metadata collection")
	}
	if server == "" {
		return nil, fmt.Errorf("connection has no server context")
	}

	return &models.MetadataCollection{ID: server, Name: "postgres"}, nil
}

// ============================================================================
// Entities
// ============================================================================

func (r *metadataRepository) AddEntity(ctx context.Context, e *models.NewEntity) (uuid.UUID, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	srcGUID, srcName := sourceColumns(e.ExternalSource)
	query := `
		INSERT INTO gov_entities (
			type_name, properties, anchor_guid, external_source_guid,
			external_source_name, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING guid`

	var guid uuid.UUID
	err := scope.Conn.QueryRow(ctx, query,
		e.TypeName,
		e.Properties.Values(),
		e.AnchorGUID,
		srcGUID,
		srcName,
		e.CreatedBy,
		time.Now(),
	).Scan(&guid)
	if err != nil {
		return uuid.Nil, translateWriteError(err, "failed to create entity")
	}

	return guid, nil
}

func (r *metadataRepository) UpdateEntityProperties(ctx context.Context, guid uuid.UUID, props *models.PropertyBag, updatedBy string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return wrapQueryError(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT properties FROM gov_entities WHERE guid = $1 FOR UPDATE`, guid).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return wrapQueryError(err, "failed to load entity properties")
	}

	current, err := decodeProperties(raw)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE gov_entities
		SET properties = $2, version = version + 1, updated_by = $3, updated_at = $4
		WHERE guid = $1`,
		guid, props.ApplyTo(current), nullString(updatedBy), time.Now())
	if err != nil {
		return translateWriteError(err, "failed to update entity")
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapQueryError(err, "failed to commit transaction")
	}
	return nil
}

// DeleteEntity relies on ON DELETE CASCADE for anchored entities and relationships.
func (r *metadataRepository) DeleteEntity(ctx context.Context, guid uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	result, err := scope.Conn.Exec(ctx, `DELETE FROM gov_entities WHERE guid = $1`, guid)
	if err != nil {
		return wrapQueryError(err, "failed to delete entity")
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *metadataRepository) GetEntity(ctx context.Context, guid uuid.UUID) (*models.Entity, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	row := scope.Conn.QueryRow(ctx, `SELECT `+entityColumns+` FROM gov_entities WHERE guid = $1`, guid)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *metadataRepository) FindEntities(ctx context.Context, q models.EntityQuery) ([]*models.Entity, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	query, args, err := buildFindQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryError(err, "failed to query entities")
	}
	defer rows.Close()

	entities := []*models.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError(err, "error iterating entities")
	}

	return entities, nil
}

// buildFindQuery renders an EntityQuery as SQL. Regex matches use the
// PostgreSQL ~ operator anchored to the whole value; value matches use jsonb
// containment so numbers and strings compare by their JSON form.
func buildFindQuery(q models.EntityQuery) (string, []any, error) {
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// RLS already filters by server; the explicit predicate keeps the index
	// usable and covers roles that bypass RLS.
	where := []string{"server_name = current_setting('app.current_server')"}

	if len(q.TypeNames) > 0 {
		where = append(where, "type_name = ANY("+arg(q.TypeNames)+")")
	}
	if q.AnchorGUID != nil {
		where = append(where, "anchor_guid = "+arg(*q.AnchorGUID))
	}

	var matches []string
	for _, m := range q.Match {
		switch {
		case m.Regex != "":
			if err := CheckPattern(m.Regex); err != nil {
				return "", nil, fmt.Errorf("invalid pattern for %s: %w", m.Name, err)
			}
			matches = append(matches, fmt.Sprintf("(properties->>%s) ~ %s", arg(m.Name), arg("^(?:"+m.Regex+")$")))
		case len(m.Values) > 0:
			var alts []string
			for _, v := range m.Values {
				doc, err := json.Marshal(map[string]any{m.Name: v})
				if err != nil {
					return "", nil, fmt.Errorf("failed to encode match value for %s: %w", m.Name, err)
				}
				alts = append(alts, "properties @> "+arg(string(doc))+"::jsonb")
			}
			matches = append(matches, "("+strings.Join(alts, " OR ")+")")
		default:
			matches = append(matches, "properties ? "+arg(m.Name))
		}
	}
	if len(matches) > 0 {
		joiner := " AND "
		if q.MatchMode == models.MatchAny {
			joiner = " OR "
		}
		where = append(where, "("+strings.Join(matches, joiner)+")")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + entityColumns + " FROM gov_entities")
	sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	if q.Sort == models.SortCreationRecent {
		sb.WriteString(" ORDER BY created_at DESC, seq DESC")
	} else {
		sb.WriteString(" ORDER BY created_at ASC, seq ASC")
	}
	if q.PageSize > 0 {
		sb.WriteString(" LIMIT " + arg(q.PageSize))
	}
	if q.StartFrom > 0 {
		sb.WriteString(" OFFSET " + arg(q.StartFrom))
	}

	return sb.String(), args, nil
}

// ============================================================================
// Relationships
// ============================================================================

func (r *metadataRepository) AddRelationship(ctx context.Context, rel *models.NewRelationship) (uuid.UUID, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	srcGUID, srcName := sourceColumns(rel.ExternalSource)
	query := `
		INSERT INTO gov_relationships (
			type_name, end1_guid, end2_guid, properties, effective_from, effective_to,
			external_source_guid, external_source_name, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING guid`

	var guid uuid.UUID
	err := scope.Conn.QueryRow(ctx, query,
		rel.TypeName,
		rel.End1GUID,
		rel.End2GUID,
		rel.Properties.Values(),
		rel.Window.From,
		rel.Window.To,
		srcGUID,
		srcName,
		rel.CreatedBy,
		time.Now(),
	).Scan(&guid)
	if err != nil {
		return uuid.Nil, translateWriteError(err, "failed to create relationship")
	}

	return guid, nil
}

func (r *metadataRepository) UpdateRelationship(ctx context.Context, guid uuid.UUID, props *models.PropertyBag, window *models.EffectivityWindow, updatedBy string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return wrapQueryError(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		raw      []byte
		from, to *time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT properties, effective_from, effective_to
		FROM gov_relationships WHERE guid = $1 FOR UPDATE`, guid).Scan(&raw, &from, &to)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return wrapQueryError(err, "failed to load relationship")
	}

	current, err := decodeProperties(raw)
	if err != nil {
		return err
	}
	if window != nil {
		from, to = window.From, window.To
	}

	_, err = tx.Exec(ctx, `
		UPDATE gov_relationships
		SET properties = $2, effective_from = $3, effective_to = $4,
		    version = version + 1, updated_by = $5, updated_at = $6
		WHERE guid = $1`,
		guid, props.ApplyTo(current), from, to, nullString(updatedBy), time.Now())
	if err != nil {
		return translateWriteError(err, "failed to update relationship")
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapQueryError(err, "failed to commit transaction")
	}
	return nil
}

func (r *metadataRepository) RemoveRelationship(ctx context.Context, guid uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	result, err := scope.Conn.Exec(ctx, `DELETE FROM gov_relationships WHERE guid = $1`, guid)
	if err != nil {
		return wrapQueryError(err, "failed to delete relationship")
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *metadataRepository) GetRelationship(ctx context.Context, guid uuid.UUID) (*models.Relationship, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	row := scope.Conn.QueryRow(ctx, `SELECT `+relationshipColumns+relationshipFrom+` WHERE r.guid = $1`, guid)
	rel, err := scanRelationship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rel, nil
}

func (r *metadataRepository) GetRelationshipsForEntity(ctx context.Context, guid uuid.UUID, relType string, dir models.Direction) ([]*models.Relationship, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}
	scope.Lock()
	defer scope.Unlock()

	var endClause string
	switch dir {
	case models.DirectionEnd1:
		endClause = "r.end1_guid = $1"
	case models.DirectionEnd2:
		endClause = "r.end2_guid = $1"
	default:
		endClause = "(r.end1_guid = $1 OR r.end2_guid = $1)"
	}

	query := `SELECT ` + relationshipColumns + relationshipFrom + `
		WHERE ` + endClause + ` AND ($2 = '' OR r.type_name = $2)
		ORDER BY r.created_at ASC, r.seq ASC`

	rows, err := scope.Conn.Query(ctx, query, guid, relType)
	if err != nil {
		return nil, wrapQueryError(err, "failed to query relationships")
	}
	defer rows.Close()

	rels := []*models.Relationship{}
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError(err, "error iterating relationships")
	}

	return rels, nil
}

// ============================================================================
// Helpers
// ============================================================================

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var (
		e                models.Entity
		raw              []byte
		srcGUID, srcName *string
	)
	err := row.Scan(
		&e.GUID, &e.TypeName, &raw, &e.AnchorGUID, &srcGUID, &srcName,
		&e.Version, &e.CreatedBy, &e.UpdatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrapQueryError(err, "failed to scan entity")
	}

	props, err := decodeProperties(raw)
	if err != nil {
		return nil, err
	}
	e.Properties = props
	e.ExternalSource = sourceFromColumns(srcGUID, srcName)
	return &e, nil
}

func scanRelationship(row pgx.Row) (*models.Relationship, error) {
	var (
		rel              models.Relationship
		raw              []byte
		srcGUID, srcName *string
	)
	err := row.Scan(
		&rel.GUID, &rel.TypeName, &rel.End1GUID, &rel.End1TypeName, &rel.End2GUID, &rel.End2TypeName,
		&raw, &rel.EffectiveFrom, &rel.EffectiveTo, &srcGUID, &srcName,
		&rel.Version, &rel.CreatedBy, &rel.UpdatedBy, &rel.CreatedAt, &rel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrapQueryError(err, "failed to scan relationship")
	}

	props, err := decodeProperties(raw)
	if err != nil {
		return nil, err
	}
	rel.Properties = props
	rel.ExternalSource = sourceFromColumns(srcGUID, srcName)
	return &rel, nil
}

func decodeProperties(raw []byte) (map[string]any, error) {
	props := map[string]any{}
	if len(raw) == 0 {
		return props, nil
	}
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return props, nil
}

func sourceColumns(s *models.ExternalSource) (*string, *string) {
	s = s.Normalize()
	if s == nil {
		return nil, nil
	}
	return nullString(s.GUID), nullString(s.Name)
}

func sourceFromColumns(guid, name *string) *models.ExternalSource {
	s := &models.ExternalSource{}
	if guid != nil {
		s.GUID = *guid
	}
	if name != nil {
		s.Name = *name
	}
	return s.Normalize()
}

// translateWriteError maps constraint violations onto the store sentinels:
// unique violations to ErrConflict and foreign key violations (a missing
// relationship end or anchor) to ErrNotFound.
func translateWriteError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperrors.ErrConflict
		case "23503":
			return apperrors.ErrNotFound
		}
	}
	return wrapQueryError(err, msg)
}

// wrapQueryError wraps err with msg. Lost connections and server shutdowns
// also wrap apperrors.ErrUnavailable so callers can tell an unreachable
// repository from a failed statement.
func wrapQueryError(err error, msg string) error {
	if isConnectionFailure(err) {
		return fmt.Errorf("%s: %w: %w", msg, apperrors.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isConnectionFailure(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P01-57P03 are server shutdown
		// and startup states.
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
