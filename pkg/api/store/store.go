// Package store persists testcases, groups and results and implements the
// result query engine.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hluk/resultsdb/pkg/api/query"
	"github.com/hluk/resultsdb/pkg/config"
)

// Page bounds one page of a listing. A nil *Page means "everything".
type Page struct {
	Limit  int
	Offset int
}

// TestcaseFilter restricts a testcase listing. Patterns use the public
// wildcard syntax (*).
type TestcaseFilter struct {
	Names        []string
	NamePatterns []string
}

// GroupFilter restricts a group listing.
type GroupFilter struct {
	UUIDs               []string
	Descriptions        []string
	DescriptionPatterns []string
}

// DataPair is one key/value attribute of a pending result.
type DataPair struct {
	Key   string
	Value string
}

// PendingResult is a fully validated result-to-be handed to CommitResult.
type PendingResult struct {
	TestcaseName   string
	TestcaseRefURL *string
	Outcome        string
	Note           *string
	RefURL         *string
	SubmitTime     *time.Time
	Groups         []Group
	Data           []DataPair
}

// Store provides persistence for API resources.
type Store interface {
	Start(ctx context.Context) error
	Stop() error
	Ping(ctx context.Context) error

	// Testcases.
	UpsertTestcase(ctx context.Context, tc *Testcase) error
	GetTestcase(ctx context.Context, name string) (*Testcase, error)
	ListTestcases(
		ctx context.Context, filter TestcaseFilter, page *Page,
	) ([]Testcase, error)

	// Groups.
	UpsertGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, uuid string) (*Group, error)
	ListGroups(
		ctx context.Context, filter GroupFilter, page *Page,
	) ([]Group, error)
	CountGroupResults(ctx context.Context, uuid string) (int64, error)

	// Results.
	CommitResult(ctx context.Context, pending *PendingResult) (*Result, error)
	GetResult(ctx context.Context, id uint) (*Result, error)
	QueryResults(
		ctx context.Context, filters *query.Filters, page *Page,
	) ([]Result, error)
	QueryLatestResults(
		ctx context.Context, filters *query.Filters,
	) ([]Result, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

// IsNotFound reports whether err stems from a lookup that matched no
// record.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Testcase{},
		&Group{},
		&Result{},
		&ResultData{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// Ping verifies database connectivity.
func (s *store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	return nil
}

// --- Testcases ---

// UpsertTestcase creates the testcase or updates its ref_url in place
// (last-write-wins).
func (s *store) UpsertTestcase(ctx context.Context, tc *Testcase) error {
	if tc.Name == "" {
		return query.Validationf("testcase name must be non-empty")
	}

	return upsertTestcase(s.db.WithContext(ctx), tc)
}

func upsertTestcase(db *gorm.DB, tc *Testcase) error {
	refURL := tc.RefURL

	result := db.Where("name = ?", tc.Name).FirstOrCreate(tc)
	if result.Error != nil {
		return fmt.Errorf("upserting testcase: %w", result.Error)
	}

	if refURL != nil && result.RowsAffected == 0 {
		tc.RefURL = refURL

		if err := db.Model(tc).
			Update("ref_url", refURL).Error; err != nil {
			return fmt.Errorf("updating testcase ref_url: %w", err)
		}
	}

	return nil
}

func (s *store) GetTestcase(
	ctx context.Context, name string,
) (*Testcase, error) {
	var tc Testcase
	if err := s.db.WithContext(ctx).
		Where("name = ?", name).
		First(&tc).Error; err != nil {
		return nil, fmt.Errorf("getting testcase: %w", err)
	}

	return &tc, nil
}

func (s *store) ListTestcases(
	ctx context.Context, filter TestcaseFilter, page *Page,
) ([]Testcase, error) {
	db := s.db.WithContext(ctx).Model(&Testcase{})

	if len(filter.Names) > 0 {
		db = db.Where("name IN ?", filter.Names)
	}

	if len(filter.NamePatterns) > 0 {
		sql, args := likeClause("name", filter.NamePatterns)
		db = db.Where(sql, args...)
	}

	db = applyPage(db, page)

	var testcases []Testcase
	if err := db.Order("name ASC").Find(&testcases).Error; err != nil {
		return nil, fmt.Errorf("listing testcases: %w", err)
	}

	return testcases, nil
}

// --- Groups ---

// UpsertGroup creates the group or updates the description/ref_url fields
// that are present.
func (s *store) UpsertGroup(ctx context.Context, g *Group) error {
	return upsertGroup(s.db.WithContext(ctx), g)
}

func upsertGroup(db *gorm.DB, g *Group) error {
	description := g.Description
	refURL := g.RefURL

	result := db.Where("uuid = ?", g.UUID).FirstOrCreate(g)
	if result.Error != nil {
		return fmt.Errorf("upserting group: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		updates := map[string]any{}

		if description != nil {
			updates["description"] = description
			g.Description = description
		}

		if refURL != nil {
			updates["ref_url"] = refURL
			g.RefURL = refURL
		}

		if len(updates) > 0 {
			if err := db.Model(g).Updates(updates).Error; err != nil {
				return fmt.Errorf("updating group: %w", err)
			}
		}
	}

	return nil
}

func (s *store) GetGroup(
	ctx context.Context, uuid string,
) (*Group, error) {
	var g Group
	if err := s.db.WithContext(ctx).
		Where("uuid = ?", uuid).
		First(&g).Error; err != nil {
		return nil, fmt.Errorf("getting group: %w", err)
	}

	return &g, nil
}

func (s *store) ListGroups(
	ctx context.Context, filter GroupFilter, page *Page,
) ([]Group, error) {
	db := s.db.WithContext(ctx).Model(&Group{})

	if len(filter.UUIDs) > 0 {
		db = db.Where("uuid IN ?", filter.UUIDs)
	}

	if len(filter.Descriptions) > 0 {
		db = db.Where("description IN ?", filter.Descriptions)
	}

	if len(filter.DescriptionPatterns) > 0 {
		sql, args := likeClause("description", filter.DescriptionPatterns)
		db = db.Where(sql, args...)
	}

	db = applyPage(db, page)

	var groups []Group
	if err := db.Order("uuid ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	return groups, nil
}

func (s *store) CountGroupResults(
	ctx context.Context, uuid string,
) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Table("results_groups").
		Where("group_uuid = ?", uuid).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting group results: %w", err)
	}

	return count, nil
}

// --- Results ---

// CommitResult atomically upserts the referenced testcase and groups,
// assigns the result a new id and persists its data rows. On any failure
// the whole transaction rolls back; no partial state persists.
func (s *store) CommitResult(
	ctx context.Context, pending *PendingResult,
) (*Result, error) {
	if pending.TestcaseName == "" {
		return nil, query.Validationf("testcase name must be non-empty")
	}

	if pending.Outcome == "" {
		return nil, query.Validationf("outcome must be non-empty")
	}

	for _, pair := range pending.Data {
		if strings.Contains(pair.Key, ":") {
			return nil, query.Validationf(
				"Colon not allowed in key name: %s", pair.Key)
		}
	}

	submitTime := time.Now().UTC()
	if pending.SubmitTime != nil {
		submitTime = pending.SubmitTime.UTC()
	}

	result := &Result{
		TestcaseName: pending.TestcaseName,
		Outcome:      pending.Outcome,
		Note:         pending.Note,
		RefURL:       pending.RefURL,
		SubmitTime:   submitTime,
	}

	for _, pair := range pending.Data {
		result.Data = append(result.Data, ResultData{
			Key:   pair.Key,
			Value: pair.Value,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		testcase := &Testcase{
			Name:   pending.TestcaseName,
			RefURL: pending.TestcaseRefURL,
		}
		if err := upsertTestcase(tx, testcase); err != nil {
			return err
		}

		result.Testcase = *testcase

		groups := make([]Group, 0, len(pending.Groups))

		for i := range pending.Groups {
			g := pending.Groups[i]
			if err := upsertGroup(tx, &g); err != nil {
				return err
			}

			groups = append(groups, g)
		}

		// The id is assigned here by the database sequence, never in
		// application code.
		if err := tx.Omit("Groups").Create(result).Error; err != nil {
			return fmt.Errorf("creating result: %w", err)
		}

		if len(groups) > 0 {
			if err := tx.Model(result).
				Association("Groups").
				Append(&groups); err != nil {
				return fmt.Errorf("attaching result groups: %w", err)
			}
		}

		result.Groups = groups

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *store) GetResult(
	ctx context.Context, id uint,
) (*Result, error) {
	var result Result
	if err := s.db.WithContext(ctx).
		Preload("Testcase").
		Preload("Groups").
		Preload("Data").
		First(&result, id).Error; err != nil {
		return nil, fmt.Errorf("getting result: %w", err)
	}

	return &result, nil
}

// QueryResults returns the results matching the parsed filters, ordered by
// (submit_time, id) in the requested direction.
func (s *store) QueryResults(
	ctx context.Context, filters *query.Filters, page *Page,
) ([]Result, error) {
	db := buildResultsQuery(
		s.db.WithContext(ctx).Model(&Result{}), filters,
	)

	db = db.Order(orderClause(filters.Sort))
	db = applyPage(db, page)

	var results []Result
	if err := db.
		Preload("Testcase").
		Preload("Groups").
		Preload("Data").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}

	return results, nil
}

func applyPage(db *gorm.DB, page *Page) *gorm.DB {
	if page == nil {
		return db
	}

	return db.Limit(page.Limit).Offset(page.Offset)
}

func orderClause(sort query.SortSpec) string {
	if sort.Descending {
		return "results.submit_time DESC, results.id DESC"
	}

	return "results.submit_time ASC, results.id ASC"
}
