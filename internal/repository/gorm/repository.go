package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
	"github.com/antonybarran/Sam-Search-WA-3/internal/repository"
	"github.com/antonybarran/Sam-Search-WA-3/internal/shape"
)

type Store struct {
	db  *gorm.DB
	log *zap.Logger

	// positional forces every opportunity upsert through the raw positional
	// statement. Some pooler setups reject the extended protocol the struct
	// bind path relies on.
	positional bool
}

func New(db *gorm.DB, log *zap.Logger, positionalBinds bool) *Store {
	return &Store{db: db, log: log, positional: positionalBinds}
}

func (s *Store) logWarn(msg string, fields ...zap.Field) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Warn(msg, fields...)
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// upsertColumns are the columns overwritten when an incoming row collides on
// id. inserted_at keeps the first-seen timestamp.
var upsertColumns = []string{
	"title",
	"solicitation_number",
	"posted_date",
	"response_date",
	"set_aside",
	"naics",
	"org",
	"city",
	"state",
	"zip",
	"url",
	"description",
	"award_amount",
	"updated_at",
}

// positionalColumns fixes the column order for the raw fallback statement.
// positionalArgs must produce values in exactly this order.
var positionalColumns = []string{
	"id",
	"title",
	"solicitation_number",
	"posted_date",
	"response_date",
	"set_aside",
	"naics",
	"org",
	"city",
	"state",
	"zip",
	"url",
	"description",
	"award_amount",
	"inserted_at",
	"updated_at",
}

func (s *Store) UpsertOpportunities(ctx context.Context, items []models.Opportunity) (int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	rows := s.normalizeRows(items)
	if len(rows) == 0 {
		return 0, nil
	}
	if s.positional {
		if err := s.upsertPositional(ctx, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	}
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		return createInBatches(tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}), rows, 200)
	})
	if err == nil {
		return len(rows), nil
	}
	if !bindRejected(err) {
		return 0, err
	}
	s.logWarn("struct binds rejected, replaying batch positionally",
		zap.Int("rows", len(rows)), zap.Error(err))
	if err := s.upsertPositional(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	_, err := s.UpsertOpportunities(ctx, []models.Opportunity{*item})
	return err
}

// normalizeRows trims ids, truncates date columns to midnight UTC, drops rows
// with a blank id, and de-dupes by id (last occurrence wins) so the single
// conflict statement never touches one row twice.
func (s *Store) normalizeRows(items []models.Opportunity) []models.Opportunity {
	rows := make([]models.Opportunity, 0, len(items))
	index := make(map[string]int, len(items))
	dropped := 0
	for _, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			dropped++
			continue
		}
		if item.PostedDate != nil {
			d := shape.DateOnly(*item.PostedDate)
			item.PostedDate = &d
		}
		if item.ResponseDate != nil {
			d := shape.DateOnly(*item.ResponseDate)
			item.ResponseDate = &d
		}
		if at, ok := index[item.ID]; ok {
			rows[at] = item
			continue
		}
		index[item.ID] = len(rows)
		rows = append(rows, item)
	}
	if dropped > 0 {
		s.logWarn("dropped opportunity rows with blank ids", zap.Int("count", dropped))
	}
	return rows
}

func (s *Store) upsertPositional(ctx context.Context, rows []models.Opportunity) error {
	stmt := positionalUpsertSQL()
	now := time.Now().UTC()
	return s.InTx(ctx, func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Exec(stmt, positionalArgs(row, now)...).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func positionalUpsertSQL() string {
	marks := make([]string, len(positionalColumns))
	for i := range marks {
		marks[i] = "?"
	}
	sets := make([]string, 0, len(positionalColumns))
	for _, col := range positionalColumns {
		if col == "id" || col == "inserted_at" {
			continue
		}
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	return "INSERT INTO opportunities (" + strings.Join(positionalColumns, ", ") + ")" +
		" VALUES (" + strings.Join(marks, ", ") + ")" +
		" ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
}

func positionalArgs(item models.Opportunity, now time.Time) []any {
	return []any{
		item.ID,
		item.Title,
		item.SolicitationNumber,
		item.PostedDate,
		item.ResponseDate,
		item.SetAside,
		item.NAICS,
		item.Org,
		item.City,
		item.State,
		item.Zip,
		item.URL,
		item.Description,
		item.AwardAmount,
		now,
		now,
	}
}

// bindRejected reports whether err looks like the server refusing the bind
// shape of the extended protocol (parameter-count mismatch, or a pooler that
// dropped the prepared statement) rather than a data problem. Only these
// errors trigger the positional replay.
func bindRejected(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "08P01" || pgErr.Code == "26000" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "bind message supplies") {
		return true
	}
	if strings.Contains(msg, "prepared statement") && strings.Contains(msg, "does not exist") {
		return true
	}
	if strings.Contains(msg, "expected") && strings.Contains(msg, "arguments") {
		return true
	}
	return false
}

func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("response_date IS NOT NULL").
		Where("response_date < CURRENT_DATE").
		Delete(&models.Opportunity{})
	return res.RowsAffected, res.Error
}

func (s *Store) SaveRawSnapshots(ctx context.Context, items []models.RawSnapshot) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(s.db.WithContext(ctx), items, 100)
}

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	if strings.TrimSpace(state.Scope) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
			"updated_at",
		}),
	}).Create(state).Error
}

func (s *Store) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applySort(s.listQuery(ctx, params), params.Sort)
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Opportunity
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.listQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) listQuery(ctx context.Context, params repository.ListOpportunitiesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Opportunity{})
	if params.ActiveOnly {
		query = query.Where("response_date IS NULL OR response_date >= CURRENT_DATE")
	}
	if params.NAICS != nil && strings.TrimSpace(*params.NAICS) != "" {
		query = query.Where("naics ILIKE ?", "%"+strings.TrimSpace(*params.NAICS)+"%")
	}
	if params.Keyword != nil && strings.TrimSpace(*params.Keyword) != "" {
		kw := "%" + strings.TrimSpace(*params.Keyword) + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", kw, kw)
	}
	if params.Zip != nil && strings.TrimSpace(*params.Zip) != "" {
		query = query.Where("zip = ?", strings.TrimSpace(*params.Zip))
	}
	if params.SetAside != nil && strings.TrimSpace(*params.SetAside) != "" {
		query = query.Where("set_aside ILIKE ?", "%"+strings.TrimSpace(*params.SetAside)+"%")
	}
	return query
}

func applySort(query *gorm.DB, sort string) *gorm.DB {
	switch strings.TrimSpace(sort) {
	case repository.SortPostedDesc:
		return query.Order("posted_date DESC NULLS LAST")
	default:
		return query.
			Order("response_date ASC NULLS LAST").
			Order("posted_date DESC NULLS LAST")
	}
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.OpportunityRepository = (*Store)(nil)
