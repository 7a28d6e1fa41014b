// Package ops implements the operations shared by the CLI and the MCP server.
package ops

import (
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/akademi4eg/aka-assistant/internal/cache"
	"github.com/akademi4eg/aka-assistant/internal/config"
	"github.com/akademi4eg/aka-assistant/internal/document"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/extract"
	"github.com/akademi4eg/aka-assistant/internal/summarize"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps are the collaborators operations run against. Fields an operation
// does not use may be nil.
type Deps struct {
	DB       *sql.DB
	Config   *config.Config
	Store    *cache.Store
	Embedder extract.Embedder
	Chat     summarize.Chat
	Fetcher  *document.Fetcher
}

func (d *Deps) config() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

func (d *Deps) fetcher() *document.Fetcher {
	if d.Fetcher != nil {
		return d.Fetcher
	}
	cfg := d.config()
	return document.NewFetcher(cfg.DocsDir, time.Duration(cfg.TimeoutSecs)*time.Second)
}

func (d *Deps) requireDB() error {
	if d.DB == nil {
		return errors.NewInternal(stderrors.New("database is not configured"))
	}
	return nil
}

// ErrorInfo is the JSON form of a per-item error.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	if aErr, ok := errors.As(err); ok {
		return &ErrorInfo{Code: string(aErr.Code), Message: aErr.Message}
	}
	return &ErrorInfo{Code: string(errors.ErrInternal), Message: err.Error()}
}
