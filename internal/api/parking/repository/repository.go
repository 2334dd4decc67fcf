package parkingRepository

import (
	"intellilot/internal/entity"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

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

func (r *repository) NewClient(tx bool) (Client, error) {
	var db sqlx.ExtContext
	var commitFunc, rollbackFunc func() error

	db = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		db = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Records:  &recordRepository{q: db, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Records interface {
		CreateRecord(ctx context.Context, record entity.ParkingRecord) error
		GetByUser(ctx context.Context, userID, cameraID string, limit, offset int) ([]entity.ParkingRecord, int, error)
		GetLatestByCamera(ctx context.Context, cameraID string) (entity.ParkingRecord, error)
	}

	Commit   func() error
	Rollback func() error
}

type recordRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}
