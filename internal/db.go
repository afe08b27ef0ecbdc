package database

import (
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

// DB holds the database connection pool (exported so other packages can use it)
var DB *sqlx.DB

// Connect initializes the database connection using variables from the .env file
// or the process environment.
func Connect() {
	err := godotenv.Load(".env")
	if err != nil {
		// Env vars may be set at the system level; warn but continue.
		log.Println("Warning: Could not load .env file:", err)
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}
	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		dbUser = "pilot_user"
	}
	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		log.Fatal("FATAL: DB_PASSWORD environment variable is not set or .env file not loaded correctly")
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "pilot_db"
	}
	dbSSLMode := os.Getenv("DB_SSLMODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	// sqlx.Connect combines opening the connection and pinging it
	db, err := sqlx.Connect("pgx", connStr)
	if err != nil {
		log.Fatalf("FATAL: Unable to connect to database: %v\n", err)
	}

	DB = db
	log.Println("Successfully connected to the database!")
}
