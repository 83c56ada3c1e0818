package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/photoshare/backend/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	REDIS_ADDR     string
	REDIS_PASSWORD string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	KAFKA_ADDRESS string

	CLOUDINARY_CLOUD_NAME string
	CLOUDINARY_API_KEY    string
	CLOUDINARY_API_SECRET string

	SECRET_KEY string
	LOG_LEVEL  string
	PORT       string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:               os.Getenv("DB_HOST"),
		DB_PORT:               os.Getenv("DB_PORT"),
		DB_USER:               os.Getenv("DB_USER"),
		DB_PASSWORD:           os.Getenv("DB_PASSWORD"),
		DB_NAME:               os.Getenv("DB_NAME"),
		REDIS_ADDR:            os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD:        os.Getenv("REDIS_PASSWORD"),
		ES_URL:                os.Getenv("ES_URL"),
		ES_USER:               os.Getenv("ES_USER"),
		ES_PASSWORD:           os.Getenv("ES_PASSWORD"),
		KAFKA_ADDRESS:         os.Getenv("KAFKA_ADDRESS"),
		CLOUDINARY_CLOUD_NAME: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CLOUDINARY_API_KEY:    os.Getenv("CLOUDINARY_API_KEY"),
		CLOUDINARY_API_SECRET: os.Getenv("CLOUDINARY_API_SECRET"),
		SECRET_KEY:            os.Getenv("SECRET_KEY"),
		LOG_LEVEL:             os.Getenv("LOG_LEVEL"),
		PORT:                  os.Getenv("PORT"),
	}

	if config.SECRET_KEY == "" {
		return nil, fmt.Errorf("SECRET_KEY is not set")
	}
	if config.PORT == "" {
		config.PORT = "8080"
	}

	return config, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Photo{},
		&models.PhotoTransformation{},
		&models.Comment{},
		&models.Rating{},
	)
}
