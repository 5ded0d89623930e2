package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/rollcall/internal/domain/model"
)

// identityRecord is the identities table.
type identityRecord struct {
	ID         string         `gorm:"column:id;primaryKey;size:128"`
	Name       string         `gorm:"column:name;size:255;not null"`
	Department string         `gorm:"column:department;size:255"`
	Level      string         `gorm:"column:level;size:32"`
	ImageRef   string         `gorm:"column:image_ref;size:1024"`
	Position   int            `gorm:"column:position;not null;default:0;index"`
	Courses    []courseRecord `gorm:"many2many:enrollments;joinForeignKey:IdentityID;joinReferences:CourseID"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
}

func (identityRecord) TableName() string { return "identities" }

// courseRecord is the courses table.
type courseRecord struct {
	ID string `gorm:"column:id;primaryKey;size:64"`
}

func (courseRecord) TableName() string { return "courses" }

func (r identityRecord) toModel() model.Identity {
	courses := make([]string, len(r.Courses))
	for i, c := range r.Courses {
		courses[i] = c.ID
	}
	sort.Strings(courses)
	return model.Identity{
		ID:         r.ID,
		Name:       r.Name,
		Department: r.Department,
		Level:      r.Level,
		Courses:    courses,
		ImageRef:   r.ImageRef,
	}
}

// DB is a roster stored in a relational database through GORM.
type DB struct {
	db *gorm.DB
}

var _ Roster = (*DB)(nil)

// OpenDB opens driver (sqlite or postgres) at dsn and migrates the roster tables.
func OpenDB(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrUnreadable, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnreadable, driver, err)
	}
	if err := db.AutoMigrate(&courseRecord{}, &identityRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %w", ErrUnreadable, err)
	}
	return &DB{db: db}, nil
}

// All returns every identity in insertion order.
func (r *DB) All(ctx context.Context) ([]model.Identity, error) {
	var recs []identityRecord
	err := r.db.WithContext(ctx).
		Preload("Courses").
		Order("position, id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return toModels(recs), nil
}

// Enrolled returns the identities enrolled in course.
func (r *DB) Enrolled(ctx context.Context, course string) ([]model.Identity, error) {
	var recs []identityRecord
	err := r.db.WithContext(ctx).
		Preload("Courses").
		Joins("JOIN enrollments ON enrollments.identity_id = identities.id").
		Where("enrollments.course_id = ?", model.NormalizeCourse(course)).
		Order("identities.position, identities.id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return toModels(recs), nil
}

// Get returns one identity.
func (r *DB) Get(ctx context.Context, id string) (model.Identity, error) {
	var rec identityRecord
	err := r.db.WithContext(ctx).
		Preload("Courses").
		First(&rec, "id = ?", model.NormalizeID(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Identity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return rec.toModel(), nil
}

// Import upserts identities and replaces their enrolments. Input order
// becomes roster order.
func (r *DB) Import(ctx context.Context, identities []model.Identity) (int, error) {
	n := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var base int64
		if err := tx.Model(&identityRecord{}).Select("COALESCE(MAX(position), 0)").Scan(&base).Error; err != nil {
			return err
		}
		for i, id := range identities {
			id = id.Normalized()
			if id.ID == "" {
				continue
			}
			rec := identityRecord{
				ID:         id.ID,
				Name:       id.Name,
				Department: id.Department,
				Level:      id.Level,
				ImageRef:   id.ImageRef,
				Position:   int(base) + i + 1,
			}
			var existing identityRecord
			err := tx.First(&existing, "id = ?", id.ID).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&rec).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				rec.Position = existing.Position
				if err := tx.Model(&existing).Select("name", "department", "level", "image_ref").Updates(rec).Error; err != nil {
					return err
				}
			}

			courses := make([]courseRecord, len(id.Courses))
			for j, c := range id.Courses {
				courses[j] = courseRecord{ID: c}
				if err := tx.FirstOrCreate(&courses[j], courseRecord{ID: c}).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&rec).Association("Courses").Replace(courses); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import roster: %w", err)
	}
	return n, nil
}

// Close closes the underlying pool.
func (r *DB) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModels(recs []identityRecord) []model.Identity {
	out := make([]model.Identity, len(recs))
	for i, rec := range recs {
		out[i] = rec.toModel()
	}
	return out
}
