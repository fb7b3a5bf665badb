// Package repository persists users, events, registrations and feedback with gorm.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/backfill"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/dataset"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const pendingActuals = "actual_attendees IS NULL OR actual_engagement IS NULL OR actual_sentiment IS NULL OR actual_success_rate IS NULL"

// Store is the gorm-backed persistence layer.
type Store struct {
	db        *gorm.DB
	backfill  *backfill.Backfiller
	log       logger.Logger
	gormLevel gormLogger.LogLevel
}

// Counts summarizes table sizes for the stats endpoint.
type Counts struct {
	Users         int64 `json:"users"`
	Students      int64 `json:"students"`
	Events        int64 `json:"events"`
	Finalized     int64 `json:"finalized_events"`
	Registrations int64 `json:"registrations"`
	Feedback      int64 `json:"feedback"`
}

// Open connects to driver ("sqlite" or "postgres") at dsn and migrates the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	s := newStore(nil, opts...)

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  s.gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
	}

	s.db = db
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. The schema is not migrated.
func New(db *gorm.DB, opts ...Option) *Store {
	return newStore(db, opts...)
}

func newStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, gormLevel: gormLogger.Warn}
	for _, opt := range opts {
		opt(s)
	}
	if s.backfill == nil {
		s.backfill = backfill.New()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.Event{},
		&model.EventScheduleItem{},
		&model.Registration{},
		&model.Feedback{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// byColumn quotes name, since date and time are keywords in some dialects.
func byColumn(name string, desc bool) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: name}, Desc: desc}
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryQuery(op, metrics.SinceMs(start))
}

// CreateUser inserts u. A taken username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	defer observe("create_user", time.Now())
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	return translate("create user", s.db.WithContext(ctx).Create(u).Error)
}

// GetUser loads one user.
func (s *Store) GetUser(ctx context.Context, id uint) (*model.User, error) {
	defer observe("get_user", time.Now())
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

// GetUserByUsername loads one user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	defer observe("get_user", time.Now())
	var u model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

// CreateEvent inserts ev together with its schedule, then runs the backfill so an
// event created after the fact is finalized straight away.
func (s *Store) CreateEvent(ctx context.Context, ev *model.Event) error {
	defer observe("create_event", time.Now())
	var filled []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
		var err error
		filled, err = s.backfillTx(ctx, tx, ev)
		return err
	})
	if err != nil {
		return translate("create event", err)
	}
	metrics.RecordEventCreated()
	if len(filled) > 0 {
		metrics.RecordBackfill(filled, ev.ActualsComplete())
	}
	return nil
}

// SaveEvent persists ev's own columns (not its schedule and never its actual
// results), then runs the backfill against the stored row. ev's actual fields are
// refreshed from the database, so a stale copy cannot overwrite results another
// save already wrote. It returns the actual fields the backfill wrote.
func (s *Store) SaveEvent(ctx context.Context, ev *model.Event) ([]string, error) {
	defer observe("save_event", time.Now())
	var filled []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		omit := append([]string{clause.Associations}, actualColumns...)
		if err := tx.Omit(omit...).Save(ev).Error; err != nil {
			return err
		}
		stored, err := lockEvent(tx, ev.ID)
		if err != nil {
			return err
		}
		if filled, err = s.backfillTx(ctx, tx, stored); err != nil {
			return err
		}
		copyActuals(ev, stored)
		return nil
	})
	if err != nil {
		return nil, translate("save event", err)
	}
	if len(filled) > 0 {
		s.log.Info(ctx, "event actuals filled",
			logger.Uint("event_id", ev.ID),
			logger.Any("fields", filled),
			logger.Bool("finalized", ev.ActualsComplete()))
	}
	metrics.RecordBackfill(filled, len(filled) > 0 && ev.ActualsComplete())
	return filled, nil
}

var actualColumns = []string{
	backfill.FieldAttendees, backfill.FieldEngagement, backfill.FieldSentiment, backfill.FieldSuccessRate,
}

// lockEvent reads the stored row, holding a row lock on postgres until the
// transaction ends. sqlite already serializes writers.
func lockEvent(tx *gorm.DB, id uint) (*model.Event, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var ev model.Event
	if err := q.First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// backfillTx fills the null actual fields of ev, which must be the stored row. The
// update only matches while those columns are still null; if another writer got
// there first ev is reloaded and nothing is reported as written.
func (s *Store) backfillTx(ctx context.Context, tx *gorm.DB, ev *model.Event) ([]string, error) {
	filled, err := s.backfill.Run(ctx, ev, statsSource{tx: tx})
	if err != nil || len(filled) == 0 {
		return nil, err
	}
	q := tx.Model(&model.Event{}).Where("id = ?", ev.ID)
	values := make(map[string]any, len(filled))
	for _, col := range filled {
		q = q.Where(col + " IS NULL")
		values[col] = actualValue(ev, col)
	}
	res := q.Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, tx.First(ev, ev.ID).Error
	}
	return filled, nil
}

func actualValue(ev *model.Event, col string) any {
	switch col {
	case backfill.FieldAttendees:
		return *ev.ActualAttendees
	case backfill.FieldEngagement:
		return *ev.ActualEngagement
	case backfill.FieldSentiment:
		return *ev.ActualSentiment
	default:
		return *ev.ActualSuccessRate
	}
}

func copyActuals(dst, src *model.Event) {
	dst.ActualAttendees = src.ActualAttendees
	dst.ActualEngagement = src.ActualEngagement
	dst.ActualSentiment = src.ActualSentiment
	dst.ActualSuccessRate = src.ActualSuccessRate
}

// GetEvent loads an event with its schedule in creation order.
func (s *Store) GetEvent(ctx context.Context, id uint) (*model.Event, error) {
	defer observe("get_event", time.Now())
	var ev model.Event
	err := s.db.WithContext(ctx).
		Preload("Schedule", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&ev, id).Error
	if err != nil {
		return nil, translate("get event", err)
	}
	return &ev, nil
}

// ListEvents returns every event, most recent date first.
func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	defer observe("list_events", time.Now())
	var out []model.Event
	err := s.db.WithContext(ctx).Order(byColumn("date", true)).Order(byColumn("time", true)).Order(byColumn("id", true)).Find(&out).Error
	return out, translate("list events", err)
}

// PendingEvents returns events with at least one null actual field, oldest first.
func (s *Store) PendingEvents(ctx context.Context) ([]model.Event, error) {
	defer observe("pending_events", time.Now())
	var out []model.Event
	err := s.db.WithContext(ctx).Where(pendingActuals).Order(byColumn("date", false)).Order(byColumn("time", false)).Order(byColumn("id", false)).Find(&out).Error
	return out, translate("pending events", err)
}

// FinalizedEvents returns events with all actual fields set, oldest first.
func (s *Store) FinalizedEvents(ctx context.Context) ([]model.Event, error) {
	defer observe("finalized_events", time.Now())
	var out []model.Event
	err := s.db.WithContext(ctx).Where("NOT (" + pendingActuals + ")").Order(byColumn("date", false)).Order(byColumn("time", false)).Order(byColumn("id", false)).Find(&out).Error
	return out, translate("finalized events", err)
}

// RegistrationCount counts the registrations of an event.
func (s *Store) RegistrationCount(ctx context.Context, eventID uint) (int, error) {
	defer observe("registration_count", time.Now())
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Registration{}).Where("event_id = ?", eventID).Count(&n).Error
	return int(n), translate("count registrations", err)
}

// IsRegistered reports whether userID is registered for eventID.
func (s *Store) IsRegistered(ctx context.Context, eventID, userID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Registration{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).Count(&n).Error
	return n > 0, translate("is registered", err)
}

// Register adds userID to eventID. Registering twice is a no-op; created reports
// whether a row was added.
func (s *Store) Register(ctx context.Context, eventID, userID uint) (bool, error) {
	defer observe("register", time.Now())
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&model.Registration{EventID: eventID, UserID: userID})
	if res.Error != nil {
		return false, translate("register", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.RecordRegistration("register")
	}
	return res.RowsAffected > 0, nil
}

// Unregister removes userID from eventID, or returns ErrNotRegistered.
func (s *Store) Unregister(ctx context.Context, eventID, userID uint) error {
	defer observe("unregister", time.Now())
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&model.Registration{})
	if res.Error != nil {
		return translate("unregister", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("unregister: %w", ErrNotRegistered)
	}
	metrics.RecordRegistration("unregister")
	return nil
}

// AddFeedback stores f for an existing event.
func (s *Store) AddFeedback(ctx context.Context, f *model.Feedback) error {
	defer observe("add_feedback", time.Now())
	if _, err := s.GetEvent(ctx, f.EventID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return translate("add feedback", err)
	}
	metrics.RecordFeedback()
	return nil
}

// ListFeedback returns an event's feedback, newest first, with usernames.
func (s *Store) ListFeedback(ctx context.Context, eventID uint) ([]model.Feedback, error) {
	defer observe("list_feedback", time.Now())
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var out []model.Feedback
	if err := db.Where("event_id = ?", eventID).Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, translate("list feedback", err)
	}
	ids := make([]uint, 0, len(out))
	for _, f := range out {
		ids = append(ids, f.UserID)
	}
	var users []model.User
	if len(ids) > 0 {
		if err := db.Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, translate("list feedback", err)
		}
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	for i := range out {
		out[i].Username = names[out[i].UserID]
	}
	return out, nil
}

// EventStats implements backfill.Source.
func (s *Store) EventStats(ctx context.Context, eventID uint) (backfill.Stats, error) {
	return statsSource{tx: s.db}.EventStats(ctx, eventID)
}

// statsSource reads backfill inputs inside an open transaction.
type statsSource struct {
	tx *gorm.DB
}

func (src statsSource) EventStats(ctx context.Context, eventID uint) (backfill.Stats, error) {
	var st backfill.Stats
	var n int64
	db := src.tx.WithContext(ctx)
	if err := db.Model(&model.Registration{}).Where("event_id = ?", eventID).Count(&n).Error; err != nil {
		return st, translate("event stats", err)
	}
	st.Registrations = int(n)

	var feedback []model.Feedback
	if err := db.Where("event_id = ?", eventID).Order("created_at").Order("id").Find(&feedback).Error; err != nil {
		return st, translate("event stats", err)
	}
	for _, f := range feedback {
		st.Ratings = append(st.Ratings, f.Rating)
		st.Sentiments = append(st.Sentiments, f.Sentiment)
	}
	return st, nil
}

// StudentRecords summarizes every student's registrations and feedback for the
// clustering export.
func (s *Store) StudentRecords(ctx context.Context) ([]dataset.StudentRecord, error) {
	defer observe("student_records", time.Now())
	db := s.db.WithContext(ctx)

	var students []model.User
	if err := db.Where("role = ?", model.RoleStudent).Order("id").Find(&students).Error; err != nil {
		return nil, translate("student records", err)
	}

	type regRow struct {
		UserID  uint
		EventID uint
	}
	var regs []regRow
	if err := db.Model(&model.Registration{}).Select("user_id, event_id").Order("id").Scan(&regs).Error; err != nil {
		return nil, translate("student records", err)
	}
	var events []model.Event
	if err := db.Select("id", "tags").Find(&events).Error; err != nil {
		return nil, translate("student records", err)
	}
	tags := make(map[uint][]string, len(events))
	for _, ev := range events {
		tags[ev.ID] = ev.Tags
	}
	var feedback []model.Feedback
	if err := db.Order("created_at").Order("id").Find(&feedback).Error; err != nil {
		return nil, translate("student records", err)
	}

	byUser := make(map[uint]*dataset.StudentRecord, len(students))
	out := make([]dataset.StudentRecord, len(students))
	for i, u := range students {
		out[i] = dataset.StudentRecord{UserID: u.ID, Username: u.Username, Department: u.Department, Year: u.Year}
		byUser[u.ID] = &out[i]
	}
	for _, r := range regs {
		if rec, ok := byUser[r.UserID]; ok {
			rec.EventIDs = append(rec.EventIDs, r.EventID)
			rec.EventTags = append(rec.EventTags, tags[r.EventID]...)
		}
	}
	for _, f := range feedback {
		rec, ok := byUser[f.UserID]
		if !ok {
			continue
		}
		if f.Rating > 0 {
			rec.FeedbackRatings = append(rec.FeedbackRatings, f.Rating)
		}
		rec.FeedbackSentiments = append(rec.FeedbackSentiments, f.Sentiment)
	}
	return out, nil
}

// Counts returns table sizes.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	steps := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&c.Users, db.Model(&model.User{})},
		{&c.Students, db.Model(&model.User{}).Where("role = ?", model.RoleStudent)},
		{&c.Events, db.Model(&model.Event{})},
		{&c.Finalized, db.Model(&model.Event{}).Where("NOT (" + pendingActuals + ")")},
		{&c.Registrations, db.Model(&model.Registration{})},
		{&c.Feedback, db.Model(&model.Feedback{})},
	}
	for _, st := range steps {
		if err := st.query.Count(st.dst).Error; err != nil {
			return c, translate("counts", err)
		}
	}
	return c, nil
}
