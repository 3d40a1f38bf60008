package imageRecordRepository

const (
	queryCreateImageRecord = `
		INSERT INTO image_records (
			id,
			filename,
			label,
			confidence,
			model_version,
			content_hash,
			storage_url,
			created_at,
			updated_at
		) VALUES (
			:id,
			:filename,
			:label,
			:confidence,
			:model_version,
			:content_hash,
			:storage_url,
			:created_at,
			:updated_at
		)
	`

	queryGetImageRecordByID = `
		SELECT
			id,
			filename,
			label,
			confidence,
			model_version,
			content_hash,
			storage_url,
			created_at,
			updated_at
		FROM image_records
		WHERE id = :id
	`

	queryListImageRecords = `
		SELECT
			id,
			filename,
			label,
			confidence,
			model_version,
			content_hash,
			storage_url,
			created_at,
			updated_at
		FROM image_records
		ORDER BY created_at DESC, id DESC
		LIMIT :limit OFFSET :offset
	`

	queryCountImageRecords = `
		SELECT COUNT(*) FROM image_records
	`

	queryUpdateImageRecord = `
		UPDATE image_records
		SET
			filename = :filename,
			label = :label,
			confidence = :confidence,
			updated_at = :updated_at
		WHERE id = :id
	`

	queryDeleteImageRecord = `
		DELETE FROM image_records
		WHERE id = :id
		RETURNING storage_url
	`

	queryDeleteAllImageRecords = `
		DELETE FROM image_records
		RETURNING storage_url
	`
)
