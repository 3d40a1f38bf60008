package imageRecordRepository

import (
	"Myagara/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

type ImageRecordStore interface {
	CreateImageRecord(ctx context.Context, record entity.ImageRecord) error
	GetImageRecordByID(ctx context.Context, id string) (entity.ImageRecord, error)
	ListImageRecords(ctx context.Context, limit, offset int) ([]entity.ImageRecord, error)
	CountImageRecords(ctx context.Context) (int, error)
	UpdateImageRecord(ctx context.Context, record entity.ImageRecord) error
	DeleteImageRecord(ctx context.Context, id string) (string, error)
	DeleteAllImageRecords(ctx context.Context) ([]string, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		ImageRecord: &imageRecordRepository{q: sqlExecutor, log: r.log},
		Commit:      commitFunc,
		Rollback:    rollbackFunc,
	}, nil
}

type Client struct {
	ImageRecord ImageRecordStore

	Commit   func() error
	Rollback func() error
}

type imageRecordRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
