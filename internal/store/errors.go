package store

import "codeberg.org/mutker/unabara/internal/errors"

const (
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")

	// Schema
	ErrSchemaInitFailed       = errors.ErrorCode("store_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("store_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("store_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("store_transaction_failed")

	// Storage
	ErrStorageAccess = errors.ErrorCode("store_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed
	ErrNotFound      = errors.ErrResourceNotFound
	ErrInvalidDive   = errors.ErrInvalidArgument
)
