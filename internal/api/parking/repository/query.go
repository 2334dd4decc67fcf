package parkingRepository

const (
	queryCreateRecord = `
INSERT INTO parking_records (id, user_id, camera_id, node_id, source, total_slots, occupied_slots,
                             empty_slots, occupancy_rate, cars_detected, coordinates, slots_details,
                             image_width, image_height, archive_url, processing_time_ms, created_at)
VALUES (:id, :user_id, :camera_id, :node_id, :source, :total_slots, :occupied_slots,
        :empty_slots, :occupancy_rate, :cars_detected, :coordinates, :slots_details,
        :image_width, :image_height, :archive_url, :processing_time_ms, :created_at)`

	queryGetByUser = `
SELECT id, user_id, camera_id, node_id, source, total_slots, occupied_slots, empty_slots,
       occupancy_rate, cars_detected, coordinates, slots_details, image_width, image_height,
       archive_url, processing_time_ms, created_at
FROM parking_records
    WHERE user_id = :user_id
    ORDER BY created_at DESC
    LIMIT :limit OFFSET :offset`

	queryGetByUserAndCamera = `
SELECT id, user_id, camera_id, node_id, source, total_slots, occupied_slots, empty_slots,
       occupancy_rate, cars_detected, coordinates, slots_details, image_width, image_height,
       archive_url, processing_time_ms, created_at
FROM parking_records
    WHERE user_id = :user_id AND camera_id = :camera_id
    ORDER BY created_at DESC
    LIMIT :limit OFFSET :offset`

	queryCountByUser = `
SELECT COUNT(*) FROM parking_records WHERE user_id = :user_id`

	queryCountByUserAndCamera = `
SELECT COUNT(*) FROM parking_records WHERE user_id = :user_id AND camera_id = :camera_id`

	queryGetLatestByCamera = `
SELECT id, user_id, camera_id, node_id, source, total_slots, occupied_slots, empty_slots,
       occupancy_rate, cars_detected, coordinates, slots_details, image_width, image_height,
       archive_url, processing_time_ms, created_at
FROM parking_records
    WHERE camera_id = :camera_id
    ORDER BY created_at DESC
    LIMIT 1`
)
