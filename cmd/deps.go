package cmd

import (
	"context"

	"github.com/CMPEQ0/lab-mark-api/config"
	"github.com/CMPEQ0/lab-mark-api/db"
	"github.com/CMPEQ0/lab-mark-api/githubapi"
	"github.com/CMPEQ0/lab-mark-api/sheets"
	"github.com/rs/zerolog/log"
)

func credentialStore() *sheets.CredentialStore {
	return &sheets.CredentialStore{
		CredentialsFile: cfg.GoogleCredentials,
		TokenFile:       cfg.GoogleToken,
	}
}

func spreadsheetOpener() sheets.Opener {
	if cfg.SpreadsheetBackend == config.BackendXLSX {
		log.Info().Str("dir", cfg.XLSXDir).Msg("Using local workbooks")
		return sheets.WorkbookOpener(cfg.XLSXDir)
	}
	return sheets.GoogleOpener(credentialStore())
}

func githubClient() *githubapi.Client {
	if cfg.GitHubToken == "" {
		log.Warn().Msg("No GitHub token configured, requests are unauthenticated and rate limited")
	}
	return githubapi.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken)
}

// redisService connects when redis.addr is set and returns nil otherwise.
func redisService(ctx context.Context) (*db.RedisService, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client, err := db.InitializeRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	return db.NewRedisService(client), nil
}
