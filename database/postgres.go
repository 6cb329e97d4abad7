package database

import (
	"fmt"
	"time"

	"github.com/iPranay05/Skill-Prob-sub002/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresConfig holds connection settings for the record store.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// DSN renders the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone,
	)
}

// ConnectPostgres opens the pool, retrying with backoff while the database
// comes up.
func ConnectPostgres(cfg PostgresConfig, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("POSTGRES_USER not set")
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("POSTGRES_DB not set")
	}

	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
		if err == nil {
			sqlDB, poolErr := db.DB()
			if poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}
			logger.Info("Connected to PostgreSQL successfully", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
			return db, nil
		}

		logger.Warn("DB connection failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(time.Duration(i+1) * 2 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

// partialIndexes back the uniqueness rules gorm tags cannot express.
var partialIndexes = []string{
	// one live enrollment per (course, student); cancelled rows do not count
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_course_student_live
		ON course_enrollments (course_id, student_id)
		WHERE status IN ('active', 'completed', 'expired')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_coupon_usages_coupon_user_course
		ON coupon_usages (coupon_id, user_id, course_id)
		WHERE course_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_coupon_usages_coupon_user_nocourse
		ON coupon_usages (coupon_id, user_id)
		WHERE course_id IS NULL`,
	`ALTER TABLE course_capacities DROP CONSTRAINT IF EXISTS chk_course_capacities_bounds`,
	`ALTER TABLE course_capacities ADD CONSTRAINT chk_course_capacities_bounds
		CHECK (current_enrollment >= 0 AND (max_students IS NULL OR current_enrollment <= max_students))`,
	`ALTER TABLE coupons DROP CONSTRAINT IF EXISTS chk_coupons_usage`,
	`ALTER TABLE coupons ADD CONSTRAINT chk_coupons_usage
		CHECK (used_count >= 0 AND (usage_limit IS NULL OR used_count <= usage_limit))`,
}

// Migrate creates the service's tables and the constraints behind its
// invariants. The courses table belongs to the catalogue and is only
// migrated when manageCourses is set (local development).
func Migrate(db *gorm.DB, manageCourses bool) error {
	tables := []interface{}{
		&models.Coupon{},
		&models.CouponUsage{},
		&models.CourseCapacity{},
		&models.CourseEnrollment{},
		&models.Subscription{},
		&models.Payment{},
	}
	if manageCourses {
		tables = append(tables, &models.Course{})
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
