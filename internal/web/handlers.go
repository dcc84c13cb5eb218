package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stackvault/stackvault/pkg/engine"
	"github.com/stackvault/stackvault/pkg/plog"
)

// maxAPILogLines caps the ?lines parameter of /api/logs; it matches the
// logger's ring capacity, there is never more to give.
const maxAPILogLines = plog.RingCapacity

type stackView struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

func (s *Server) stackViews(ctx context.Context) []stackView {
	names := s.eng.ListStacks()
	views := make([]stackView, 0, len(names))
	for _, name := range names {
		views = append(views, stackView{Name: name, Running: s.eng.IsStackRunning(ctx, name)})
	}
	return views
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", map[string]interface{}{
		"Stacks":     s.stackViews(c.Request().Context()),
		"InProgress": s.eng.InProgress(),
		"Message":    c.QueryParam("msg"),
	})
}

// handleBackup starts a backup batch in the background and redirects to the
// dashboard. Unknown stack names and a busy engine are rejected up front.
func (s *Server) handleBackup(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return redirectWithMessage(c, "Invalid form submission")
	}
	requested := form["stacks"]

	known := make(map[string]struct{})
	for _, name := range s.eng.ListStacks() {
		known[name] = struct{}{}
	}
	for _, name := range requested {
		if _, ok := known[name]; !ok {
			return redirectWithMessage(c, "Unknown stack: "+name)
		}
	}

	if s.eng.InProgress() {
		return redirectWithMessage(c, "A backup is already in progress")
	}

	// The batch outlives the request; it must not inherit its context.
	go func() {
		if _, err := s.eng.BackupStacks(context.Background(), requested); err != nil {
			if !errors.Is(err, engine.ErrBackupInProgress) {
				plog.Error("Background backup batch failed", "error", err)
			}
		}
	}()

	if len(requested) == 0 {
		return redirectWithMessage(c, "Backup of all stacks started")
	}
	return redirectWithMessage(c, "Backup started: "+strings.Join(requested, ", "))
}

func redirectWithMessage(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/?msg="+url.QueryEscape(msg))
}

func (s *Server) handleLogList(c echo.Context) error {
	entries, err := os.ReadDir(s.cfg.LogDir)
	if err != nil && !os.IsNotExist(err) {
		return s.renderError(c, "Could not read log directory")
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isLogFileName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	return c.Render(http.StatusOK, "logs.html", map[string]interface{}{
		"Files": names,
	})
}

func (s *Server) handleLogView(c echo.Context) error {
	path, ok := s.safeLogPath(c.Param("name"))
	if !ok {
		return s.renderError(c, "Invalid log file name")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s.renderError(c, "Log file not found")
	}
	return c.Render(http.StatusOK, "view_log.html", map[string]interface{}{
		"Name":    filepath.Base(path),
		"Content": string(data),
	})
}

func (s *Server) handleLogDownload(c echo.Context) error {
	path, ok := s.safeLogPath(c.Param("name"))
	if !ok {
		return s.renderError(c, "Invalid log file name")
	}
	if _, err := os.Stat(path); err != nil {
		return s.renderError(c, "Log file not found")
	}
	return c.Attachment(path, filepath.Base(path))
}

// safeLogPath resolves a user-supplied log file name inside the log
// directory. Only plain day-log file names are accepted; anything that could
// traverse out of the directory is rejected.
func (s *Server) safeLogPath(name string) (string, bool) {
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", false
	}
	if !isLogFileName(name) {
		return "", false
	}
	return filepath.Join(s.cfg.LogDir, name), true
}

func isLogFileName(name string) bool {
	return strings.HasPrefix(name, "backup_") && strings.HasSuffix(name, ".log")
}

func (s *Server) renderError(c echo.Context, msg string) error {
	return c.Render(http.StatusNotFound, "error.html", map[string]interface{}{
		"Message": msg,
	})
}

func (s *Server) handleAPIStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"backup_in_progress": s.eng.InProgress(),
		"stacks":             s.stackViews(c.Request().Context()),
	})
}

func (s *Server) handleAPILogs(c echo.Context) error {
	lines := maxAPILogLines
	if raw := c.QueryParam("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "lines must be a positive integer"})
		}
		if n < lines {
			lines = n
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"lines": s.eng.RecentLogs(lines),
	})
}

// handleAPIConfig reports the effective configuration. Everything in it is
// paths and tuning knobs; there are no secrets to redact.
func (s *Server) handleAPIConfig(c echo.Context) error {
	cfg := s.eng.Config()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"stacks_dir":              cfg.StacksDir,
		"backup_dir":              cfg.BackupDir,
		"log_dir":                 cfg.LogDir,
		"include_data":            cfg.IncludeData,
		"skip_stop":               cfg.SkipStop,
		"retention_days":          cfg.RetentionDays,
		"log_retention_days":      cfg.LogRetentionDays,
		"compose_timeout_seconds": cfg.ComposeTimeoutSeconds,
		"compression_format":      cfg.Compression.Format,
	})
}
