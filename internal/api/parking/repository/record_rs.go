package parkingRepository

import (
	"context"
	"database/sql"
	"errors"

	"intellilot/internal/api/parking"
	"intellilot/internal/entity"
	contextPkg "intellilot/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type RecordDB struct {
	ID               sql.NullString  `db:"id"`
	UserID           sql.NullString  `db:"user_id"`
	CameraID         sql.NullString  `db:"camera_id"`
	NodeID           sql.NullString  `db:"node_id"`
	Source           sql.NullString  `db:"source"`
	TotalSlots       sql.NullInt64   `db:"total_slots"`
	OccupiedSlots    sql.NullInt64   `db:"occupied_slots"`
	EmptySlots       sql.NullInt64   `db:"empty_slots"`
	OccupancyRate    sql.NullFloat64 `db:"occupancy_rate"`
	CarsDetected     sql.NullInt64   `db:"cars_detected"`
	Coordinates      sql.NullString  `db:"coordinates"`
	SlotsDetails     sql.NullString  `db:"slots_details"`
	ImageWidth       sql.NullInt64   `db:"image_width"`
	ImageHeight      sql.NullInt64   `db:"image_height"`
	ArchiveURL       sql.NullString  `db:"archive_url"`
	ProcessingTimeMs sql.NullFloat64 `db:"processing_time_ms"`
	CreatedAt        sql.NullTime    `db:"created_at"`
}

func (r RecordDB) toEntity() entity.ParkingRecord {
	return entity.ParkingRecord{
		ID:               r.ID.String,
		UserID:           r.UserID.String,
		CameraID:         r.CameraID.String,
		NodeID:           r.NodeID.String,
		Source:           r.Source.String,
		TotalSlots:       int(r.TotalSlots.Int64),
		OccupiedSlots:    int(r.OccupiedSlots.Int64),
		EmptySlots:       int(r.EmptySlots.Int64),
		OccupancyRate:    r.OccupancyRate.Float64,
		CarsDetected:     int(r.CarsDetected.Int64),
		Coordinates:      r.Coordinates.String,
		SlotsDetails:     r.SlotsDetails.String,
		ImageWidth:       int(r.ImageWidth.Int64),
		ImageHeight:      int(r.ImageHeight.Int64),
		ArchiveURL:       r.ArchiveURL.String,
		ProcessingTimeMs: r.ProcessingTimeMs.Float64,
		CreatedAt:        r.CreatedAt.Time,
	}
}

func (r *recordRepository) CreateRecord(c context.Context, record entity.ParkingRecord) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":                 record.ID,
		"user_id":            record.UserID,
		"camera_id":          record.CameraID,
		"node_id":            record.NodeID,
		"source":             record.Source,
		"total_slots":        record.TotalSlots,
		"occupied_slots":     record.OccupiedSlots,
		"empty_slots":        record.EmptySlots,
		"occupancy_rate":     record.OccupancyRate,
		"cars_detected":      record.CarsDetected,
		"coordinates":        record.Coordinates,
		"slots_details":      record.SlotsDetails,
		"image_width":        record.ImageWidth,
		"image_height":       record.ImageHeight,
		"archive_url":        record.ArchiveURL,
		"processing_time_ms": record.ProcessingTimeMs,
		"created_at":         record.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateRecord, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateRecord")
		return err
	}

	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute CreateRecord query")
		return err
	}

	return nil
}

func (r *recordRepository) GetByUser(c context.Context, userID, cameraID string, limit, offset int) ([]entity.ParkingRecord, int, error) {
	requestID := contextPkg.GetRequestID(c)

	listQuery, countQuery := queryGetByUser, queryCountByUser
	argsKV := map[string]interface{}{
		"user_id": userID,
		"limit":   limit,
		"offset":  offset,
	}
	if cameraID != "" {
		listQuery, countQuery = queryGetByUserAndCamera, queryCountByUserAndCamera
		argsKV["camera_id"] = cameraID
	}

	query, args, err := sqlx.Named(listQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for GetByUser")
		return nil, 0, err
	}

	query = r.q.Rebind(query)

	var rows []RecordDB
	if err := sqlx.SelectContext(c, r.q, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute GetByUser query")
		return nil, 0, err
	}

	query, args, err = sqlx.Named(countQuery, argsKV)
	if err != nil {
		return nil, 0, err
	}

	query = r.q.Rebind(query)

	var total int
	if err := sqlx.GetContext(c, r.q, &total, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute count query for GetByUser")
		return nil, 0, err
	}

	records := make([]entity.ParkingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}

	return records, total, nil
}

func (r *recordRepository) GetLatestByCamera(c context.Context, cameraID string) (entity.ParkingRecord, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryGetLatestByCamera, map[string]interface{}{"camera_id": cameraID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for GetLatestByCamera")
		return entity.ParkingRecord{}, err
	}

	query = r.q.Rebind(query)

	var row RecordDB
	if err := sqlx.GetContext(c, r.q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ParkingRecord{}, parking.ErrRecordNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute GetLatestByCamera query")
		return entity.ParkingRecord{}, err
	}

	return row.toEntity(), nil
}
