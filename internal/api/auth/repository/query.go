package authRepository

const (
	queryCreateUser = `
INSERT INTO users (id, username, password, organization_name, location, size, verification, status, created_at)
VALUES (:id, :username, :password, :organization_name, :location, :size, :verification, :status, :created_at)`

	queryGetByID = `
SELECT id, username, password, organization_name, location, size, verification, status,
       last_login_at, created_at, updated_at
FROM users
    WHERE id = :id`

	queryGetByUsername = `
SELECT id, username, password, organization_name, location, size, verification, status,
       last_login_at, created_at, updated_at
FROM users
    WHERE username = :username`

	queryUpdateLastLogin = `
UPDATE users
SET last_login_at = :last_login_at,
    updated_at = :updated_at
WHERE id = :id`
)
