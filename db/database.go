package db

import (
	"database/sql"
	"fmt"
	"log"

	"StudioLink/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
// Chat tables are managed separately through GORM AutoMigrate (see gorm.go).
func InitDB() error {
	creators := []func() error{
		createUsersTable,
		createStudiosTable,
		createRoomsTable,
		createBookingsTable,
		createAvailabilityHoldsTable,
		createAlertsTable,
		createBeatsTable,
		createBeatRatingsTable,
		createDownloadRequestsTable,
		createDownloadGrantsTable,
	}
	for _, create := range creators {
		if err := create(); err != nil {
			return err
		}
	}

	log.Println("Database initialization completed.")
	return nil
}

func createUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		display_name VARCHAR(100),
		role VARCHAR(20) NOT NULL DEFAULT 'artist',
		phone VARCHAR(20),
		avatar_url VARCHAR(512),
		bio TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

func createStudiosTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS studios (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name VARCHAR(200) NOT NULL,
		address VARCHAR(512),
		phone VARCHAR(20),
		cover_url VARCHAR(512),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_studios_owner (owner_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create studios table: %w", err)
	}
	return nil
}

func createRoomsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS rooms (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		studio_id BIGINT NOT NULL,
		name VARCHAR(100) NOT NULL,
		hourly_fee BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_rooms_studio (studio_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create rooms table: %w", err)
	}
	return nil
}

func createBookingsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS bookings (
		id CHAR(36) PRIMARY KEY,
		artist_id BIGINT NOT NULL,
		studio_id BIGINT NOT NULL,
		room_id BIGINT NOT NULL,
		engineer_id BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		requested_start DATETIME NOT NULL,
		requested_end DATETIME NOT NULL,
		confirmed_start DATETIME NULL,
		confirmed_end DATETIME NULL,
		notes TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_bookings_artist (artist_id),
		INDEX idx_bookings_studio (studio_id),
		INDEX idx_bookings_engineer (engineer_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create bookings table: %w", err)
	}
	return nil
}

func createAvailabilityHoldsTable() error {
	// 复合主键保证同一预订在同一方日历下只有一条镜像，重复写为覆盖
	query := `
	CREATE TABLE IF NOT EXISTS availability_holds (
		booking_id CHAR(36) NOT NULL,
		owner_type VARCHAR(10) NOT NULL,
		owner_id BIGINT NOT NULL,
		room_id BIGINT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		duration_minutes INT NOT NULL,
		source_updated_at DATETIME NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (owner_type, owner_id, booking_id),
		INDEX idx_holds_calendar (owner_type, owner_id, start_time)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create availability_holds table: %w", err)
	}
	return nil
}

func createAlertsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS alerts (
		id CHAR(36) PRIMARY KEY,
		user_id BIGINT NOT NULL,
		category VARCHAR(30) NOT NULL,
		title VARCHAR(200) NOT NULL,
		message TEXT,
		link VARCHAR(255),
		is_read TINYINT(1) NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_alerts_user (user_id, is_read)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}
	return nil
}

func createBeatsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS beats (
		id CHAR(36) PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		title VARCHAR(200) NOT NULL,
		genre VARCHAR(50),
		bpm INT,
		price_cents BIGINT NOT NULL DEFAULT 0,
		object_key VARCHAR(512),
		status VARCHAR(10) NOT NULL DEFAULT 'staged',
		rating_map JSON,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_beats_owner (owner_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create beats table: %w", err)
	}
	return nil
}

func createBeatRatingsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS beat_ratings (
		beat_id CHAR(36) NOT NULL,
		reviewer_id BIGINT NOT NULL,
		rating TINYINT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (beat_id, reviewer_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create beat_ratings table: %w", err)
	}
	return nil
}

func createDownloadRequestsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS download_requests (
		id CHAR(36) PRIMARY KEY,
		beat_id CHAR(36) NOT NULL,
		producer_id BIGINT NOT NULL,
		requester_id BIGINT NOT NULL,
		beat_title VARCHAR(200),
		status VARCHAR(10) NOT NULL DEFAULT 'pending',
		download_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		decided_at DATETIME NULL,
		INDEX idx_dlreq_producer (producer_id),
		INDEX idx_dlreq_requester (requester_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create download_requests table: %w", err)
	}
	return nil
}

func createDownloadGrantsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS download_grants (
		request_id CHAR(36) PRIMARY KEY,
		requester_id BIGINT NOT NULL,
		producer_id BIGINT NOT NULL,
		beat_id CHAR(36) NOT NULL,
		beat_title VARCHAR(200),
		status VARCHAR(10) NOT NULL,
		download_url TEXT,
		requested_at DATETIME NOT NULL,
		decided_at DATETIME NULL,
		INDEX idx_grants_requester (requester_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create download_grants table: %w", err)
	}
	return nil
}
