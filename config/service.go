package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	BackendGoogle = "google"
	BackendXLSX   = "xlsx"

	defaultGitHubAPI = "https://api.github.com"
	defaultAddress   = ":8080"
)

// Service holds the global service settings. It is loaded once at startup and
// passed explicitly to whatever needs it.
type Service struct {
	CoursesDir string

	GitHubToken  string
	GitHubAPIURL string

	ServerAddress string
	LogLevel      string

	SpreadsheetBackend string
	XLSXDir            string
	GoogleCredentials  string
	GoogleToken        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadService reads config.yaml. Relative paths inside it are resolved against
// the directory of the config file.
func LoadService(path string) (*Service, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return serviceFromDocument(doc, filepath.Dir(path))
}

func serviceFromDocument(doc *Document, baseDir string) (*Service, error) {
	cfg := &Service{
		GitHubAPIURL:       defaultGitHubAPI,
		ServerAddress:      defaultAddress,
		LogLevel:           "info",
		SpreadsheetBackend: BackendGoogle,
		GoogleCredentials:  "credentials.json",
		GoogleToken:        "token.json",
	}

	var ok bool
	if cfg.CoursesDir, ok = doc.String("courses.config.location"); !ok {
		return nil, fmt.Errorf("%s: courses.config.location is required", doc.Name())
	}
	cfg.GitHubToken, _ = doc.String("github.token")
	if v, ok := doc.String("github.api-url"); ok {
		cfg.GitHubAPIURL = v
	}
	if v, ok := doc.String("server.address"); ok {
		cfg.ServerAddress = v
	}
	if v, ok := doc.String("log.level"); ok {
		cfg.LogLevel = v
	}
	if v, ok := doc.String("spreadsheet.backend"); ok {
		cfg.SpreadsheetBackend = v
	}
	cfg.XLSXDir, _ = doc.String("spreadsheet.xlsx-dir")
	if v, ok := doc.String("google.credentials"); ok {
		cfg.GoogleCredentials = v
	}
	if v, ok := doc.String("google.token"); ok {
		cfg.GoogleToken = v
	}
	cfg.RedisAddr, _ = doc.String("redis.addr")
	cfg.RedisPassword, _ = doc.String("redis.password")
	cfg.RedisDB, _ = doc.Int("redis.db")

	if v := os.Getenv("LABMARK_GITHUB_TOKEN"); v != "" {
		cfg.GitHubToken = v
	}
	if v := os.Getenv("LABMARK_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}

	switch cfg.SpreadsheetBackend {
	case BackendGoogle:
	case BackendXLSX:
		if cfg.XLSXDir == "" {
			return nil, fmt.Errorf("%s: spreadsheet.xlsx-dir is required for the xlsx backend", doc.Name())
		}
	default:
		return nil, fmt.Errorf("%s: unknown spreadsheet backend %q", doc.Name(), cfg.SpreadsheetBackend)
	}

	cfg.CoursesDir = resolvePath(baseDir, cfg.CoursesDir)
	cfg.XLSXDir = resolvePath(baseDir, cfg.XLSXDir)
	cfg.GoogleCredentials = resolvePath(baseDir, cfg.GoogleCredentials)
	cfg.GoogleToken = resolvePath(baseDir, cfg.GoogleToken)

	return cfg, nil
}

// Catalog returns the course directory described by this config.
func (s *Service) Catalog() Catalog {
	return Catalog{Dir: s.CoursesDir}
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
