package imageRecordRepository

import (
	"Myagara/internal/api/image_record"
	"Myagara/internal/entity"
	contextPkg "Myagara/pkg/context"
	"context"
	"database/sql"
	"errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"time"
)

type ImageRecordDB struct {
	ID           string          `db:"id"`
	Filename     sql.NullString  `db:"filename"`
	Label        sql.NullString  `db:"label"`
	Confidence   sql.NullFloat64 `db:"confidence"`
	ModelVersion sql.NullString  `db:"model_version"`
	ContentHash  sql.NullString  `db:"content_hash"`
	StorageURL   sql.NullString  `db:"storage_url"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r *imageRecordRepository) CreateImageRecord(c context.Context, record entity.ImageRecord) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":            record.ID,
		"filename":      record.Filename,
		"label":         record.Label,
		"confidence":    record.Confidence,
		"model_version": record.ModelVersion,
		"content_hash":  record.ContentHash,
		"storage_url":   record.StorageURL,
		"created_at":    record.CreatedAt,
		"updated_at":    record.UpdatedAt,
	}

	query, args, err := sqlx.Named(queryCreateImageRecord, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateImageRecord")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating image record")
		return err
	}

	return nil
}

func (r *imageRecordRepository) GetImageRecordByID(c context.Context, id string) (entity.ImageRecord, error) {
	requestID := contextPkg.GetRequestID(c)
	var record ImageRecordDB

	query, args, err := sqlx.Named(queryGetImageRecordByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetImageRecordByID named query preparation err")
		return entity.ImageRecord{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"id":         id,
			}).Warn("GetImageRecordByID no rows found")
			return entity.ImageRecord{}, image_record.ErrRecordNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetImageRecordByID execution err")
		return entity.ImageRecord{}, err
	}

	return makeImageRecord(record), nil
}

func (r *imageRecordRepository) ListImageRecords(c context.Context, limit, offset int) ([]entity.ImageRecord, error) {
	requestID := contextPkg.GetRequestID(c)
	var records []ImageRecordDB

	query, args, err := sqlx.Named(queryListImageRecords, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListImageRecords named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &records, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListImageRecords execution err")
		return nil, err
	}

	result := make([]entity.ImageRecord, 0, len(records))
	for _, record := range records {
		result = append(result, makeImageRecord(record))
	}
	return result, nil
}

func (r *imageRecordRepository) CountImageRecords(c context.Context) (int, error) {
	var total int
	if err := r.q.GetContext(c, &total, queryCountImageRecords); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(c),
			"error":      err.Error(),
		}).Error("CountImageRecords execution err")
		return 0, err
	}
	return total, nil
}

func (r *imageRecordRepository) UpdateImageRecord(c context.Context, record entity.ImageRecord) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryUpdateImageRecord, map[string]interface{}{
		"id":         record.ID,
		"filename":   record.Filename,
		"label":      record.Label,
		"confidence": record.Confidence,
		"updated_at": record.UpdatedAt,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateImageRecord named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	res, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateImageRecord execution err")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return image_record.ErrRecordNotFound
	}
	return nil
}

// DeleteImageRecord returns the storage URL of the deleted row.
func (r *imageRecordRepository) DeleteImageRecord(c context.Context, id string) (string, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryDeleteImageRecord, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteImageRecord named query preparation err")
		return "", err
	}
	query = r.q.Rebind(query)

	var storageURL sql.NullString
	if err := r.q.QueryRowxContext(c, query, args...).Scan(&storageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", image_record.ErrRecordNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteImageRecord execution err")
		return "", err
	}
	return storageURL.String, nil
}

// DeleteAllImageRecords returns the storage URLs of every deleted row.
func (r *imageRecordRepository) DeleteAllImageRecords(c context.Context) ([]string, error) {
	var urls []sql.NullString
	if err := r.q.SelectContext(c, &urls, queryDeleteAllImageRecords); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(c),
			"error":      err.Error(),
		}).Error("DeleteAllImageRecords execution err")
		return nil, err
	}

	result := make([]string, 0, len(urls))
	for _, u := range urls {
		result = append(result, u.String)
	}
	return result, nil
}

func makeImageRecord(r ImageRecordDB) entity.ImageRecord {
	return entity.ImageRecord{
		ID:           r.ID,
		Filename:     r.Filename.String,
		Label:        r.Label.String,
		Confidence:   r.Confidence.Float64,
		ModelVersion: r.ModelVersion.String,
		ContentHash:  r.ContentHash.String,
		StorageURL:   r.StorageURL.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
