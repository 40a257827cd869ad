package config

import (
	"fmt"
	"path/filepath"

	"paper-notes-app/internal/envHelper"
)

const DefaultPort = 8000

type AppConfig struct {
	Port           int       `json:"port"`
	RootDir        string    `json:"root_dir"`
	NotesDir       string    `json:"notes_dir"`
	MaxUploadBytes int64     `json:"max_upload_bytes"`
	AWS            AWSConfig `json:"aws"`
	DB             DBConfig  `json:"db"`
}

// AWSConfig enables the S3 picture mirror when Bucket is set.
type AWSConfig struct {
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
}

// DBConfig enables the mysql audit log when Host is set.
type DBConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Name     string `json:"name"`
}

// FromEnv reads the configuration from the environment, falling back to the
// defaults the server has always used.
func FromEnv() AppConfig {
	return AppConfig{
		Port:           envHelper.GetEnvInt("PORT", DefaultPort),
		RootDir:        envHelper.GetEnvOrDefault("APP_ROOT", "."),
		NotesDir:       envHelper.GetEnvOrDefault("NOTES_DIR", "notes"),
		MaxUploadBytes: int64(envHelper.GetEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		AWS: AWSConfig{
			Region:    envHelper.GetEnvOrDefault("AWS_REGION", "us-east-1"),
			Bucket:    envHelper.GetEnvOrDefault("AWS_BUCKET", ""),
			Prefix:    envHelper.GetEnvOrDefault("S3_PREFIX", "notes/pics/"),
			AccessKey: envHelper.GetEnvOrDefault("AWS_ACCESS_KEY_ID", ""),
			SecretKey: envHelper.GetEnvOrDefault("AWS_SECRET_ACCESS_KEY", ""),
		},
		DB: DBConfig{
			Host:     envHelper.GetEnvOrDefault("DB_HOST", ""),
			Port:     envHelper.GetEnvOrDefault("DB_PORT", "3306"),
			User:     envHelper.GetEnvOrDefault("DB_USERNAME", ""),
			Password: envHelper.GetEnvOrDefault("DB_PASSWORD", ""),
			Name:     envHelper.GetEnvOrDefault("DB_DATABASE", ""),
		},
	}
}

// NotesPath is where total.json and structure.txt live.
func (c AppConfig) NotesPath() string {
	if filepath.IsAbs(c.NotesDir) {
		return c.NotesDir
	}
	return filepath.Join(c.RootDir, c.NotesDir)
}

// PicsPath is where core pictures are stored.
func (c AppConfig) PicsPath() string {
	return filepath.Join(c.NotesPath(), "pics")
}

func (c AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DSN returns the go-sql-driver/mysql connection string.
func (d DBConfig) DSN() string {
	return d.User + ":" + d.Password + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name
}
