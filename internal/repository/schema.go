package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements holds the DDL for every table this service owns.
// CREATE TABLE IF NOT EXISTS keeps startup idempotent.  The unique
// keys on coupons.code and coupon_usages.booking_id are load-bearing:
// they back the application-level checks in the coupon engine.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS experiences (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		organizer_id BIGINT UNSIGNED NOT NULL,
		title VARCHAR(255) NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		currency CHAR(3) NOT NULL DEFAULT 'EUR',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_experiences_organizer (organizer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		experience_id BIGINT UNSIGNED NOT NULL,
		capacity INT UNSIGNED NOT NULL,
		starts_at DATETIME NOT NULL,
		price_override DECIMAL(10,2) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_sessions_experience (experience_id),
		CONSTRAINT fk_sessions_experience FOREIGN KEY (experience_id) REFERENCES experiences (id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		session_id BIGINT UNSIGNED NOT NULL,
		explorer_id BIGINT UNSIGNED NOT NULL,
		guests INT UNSIGNED NOT NULL,
		total_price DECIMAL(10,2) NOT NULL,
		status ENUM('PENDING','CONFIRMED','CANCELLED','EXPIRED','COMPLETED') NOT NULL DEFAULT 'PENDING',
		payment_status VARCHAR(32) NULL,
		payment_id BIGINT UNSIGNED NULL,
		expires_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_bookings_session_status (session_id, status),
		KEY idx_bookings_explorer (explorer_id),
		CONSTRAINT fk_bookings_session FOREIGN KEY (session_id) REFERENCES sessions (id)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		booking_id BIGINT UNSIGNED NOT NULL,
		provider ENUM('STRIPE','PAYPAL','PAYZONE','CASH') NOT NULL,
		provider_payment_id VARCHAR(255) NULL,
		amount BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		status ENUM('REQUIRES_PAYMENT_METHOD','PROCESSING','SUCCEEDED','CANCELLED') NOT NULL,
		error_code VARCHAR(64) NULL,
		error_message TEXT NULL,
		receipt_url VARCHAR(512) NULL,
		captured_at DATETIME NULL,
		refunded_at DATETIME NULL,
		refunded_amount BIGINT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_payments_booking (booking_id),
		KEY idx_payments_provider_ref (provider_payment_id),
		CONSTRAINT fk_payments_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(64) NOT NULL,
		discount_percentage INT NOT NULL,
		max_reduction_amount DECIMAL(10,2) NULL,
		max_uses INT UNSIGNED NULL,
		used_count INT UNSIGNED NOT NULL DEFAULT 0,
		valid_from DATETIME NULL,
		expires_at DATETIME NULL,
		type ENUM('INTERNAL','EXTERNAL') NOT NULL DEFAULT 'EXTERNAL',
		experience_id BIGINT UNSIGNED NULL,
		session_id BIGINT UNSIGNED NULL,
		created_by BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_coupons_code (code)
	)`,
	`CREATE TABLE IF NOT EXISTS coupon_usages (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		coupon_id BIGINT UNSIGNED NOT NULL,
		booking_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		price_before DECIMAL(10,2) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_coupon_usages_booking (booking_id),
		KEY idx_coupon_usages_coupon_user (coupon_id, user_id),
		CONSTRAINT fk_coupon_usages_coupon FOREIGN KEY (coupon_id) REFERENCES coupons (id),
		CONSTRAINT fk_coupon_usages_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
	)`,
	`CREATE TABLE IF NOT EXISTS refunds (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		payment_id BIGINT UNSIGNED NOT NULL,
		amount BIGINT NOT NULL,
		reason VARCHAR(255) NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
		provider_refund_id VARCHAR(255) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_refunds_payment (payment_id),
		CONSTRAINT fk_refunds_payment FOREIGN KEY (payment_id) REFERENCES payments (id)
	)`,
}

// InitSchema creates all tables owned by this service when they do not
// exist yet.  It is safe to call on every startup.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema init: %w", err)
		}
	}
	return nil
}
