package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// Blueprint is one row per application holding the serialized blueprint.
type Blueprint struct {
	AppName         string         `gorm:"type:text;primaryKey"`
	Region          string         `gorm:"type:text;not null;default:''"`
	Stage           string         `gorm:"type:text;not null;default:''"`
	DeploymentCount int            `gorm:"type:integer;not null;default:0;check:deployment_count >= 0"`
	Data            datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

// Deployment is an append-only record of every persisted deployment.
type Deployment struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	AppName    string         `gorm:"type:text;not null;index"`
	Stage      string         `gorm:"type:text;not null;default:''"`
	Count      int            `gorm:"type:integer;not null"`
	Checksums  datatypes.JSON `gorm:"type:jsonb"`
	FinishedAt time.Time      `gorm:"type:timestamptz;not null;default:now()"`
	Blueprint  Blueprint      `gorm:"foreignKey:AppName;references:AppName;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func openGorm(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(&Blueprint{}, &Deployment{}); err != nil {
		return err
	}

	migrator := gormDB.WithContext(ctx).Migrator()
	if migrator.HasConstraint(&Deployment{}, "Blueprint") {
		return nil
	}
	return migrator.CreateConstraint(&Deployment{}, "Blueprint")
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(&Deployment{}, &Blueprint{})
}
