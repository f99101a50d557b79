package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	sperrors "github.com/jmurray2011/spindle/internal/errors"
	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/internal/rules"
	"github.com/jmurray2011/spindle/internal/source"
	"github.com/jmurray2011/spindle/pkg/timeutil"
)

// entryJSON is a record plus, in view mode, its highlight style.
type entryJSON struct {
	*record.Record
	Highlight *rules.Style `json:"highlight,omitempty"`
}

// view runs records through the pipeline. The pipeline works on clones so
// stored records are never rewritten by a reader. Hidden records are left
// out.
func (s *Server) view(records []*record.Record) []entryJSON {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()

	out := make([]entryJSON, 0, len(records))
	for _, r := range records {
		c := r.Clone()
		v := s.pipeline.Process(c)
		if !v.Visible {
			continue
		}
		e := entryJSON{Record: c}
		if v.Highlighted {
			style := v.Style
			e.Highlight = &style
		}
		out = append(out, e)
	}
	return out
}

func raw(records []*record.Record) []entryJSON {
	out := make([]entryJSON, len(records))
	for i, r := range records {
		out[i] = entryJSON{Record: r}
	}
	return out
}

func (s *Server) render(c *gin.Context, records []*record.Record) []entryJSON {
	if c.Query("view") == "1" || c.Query("view") == "true" {
		return s.view(records)
	}
	return raw(records)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "ok",
		"uptime":                timeutil.FormatDuration(time.Since(s.startTime)),
		"entries":               s.store.Len(),
		"max_size":              s.store.MaxSize(),
		"dropped_notifications": s.store.DroppedNotifications(),
		"enabled":               s.store.Enabled(),
		"providers":             len(s.instances),
	})
}

func (s *Server) handleEntries(c *gin.Context) {
	records := s.store.Entries()
	total := len(records)

	if since := c.Query("since"); since != "" {
		t, err := timeutil.Parse(since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": sperrors.InvalidTimeError(since).Error()})
			return
		}
		filtered := records[:0:0]
		for _, r := range records {
			if r.HasTime() && !r.DateTime.Before(t) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if n < len(records) {
			records = records[len(records)-n:]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"entries": s.render(c, records),
	})
}

func (s *Server) handleNewEntries(c *gin.Context) {
	records := s.store.NewEntries()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"entries": s.render(c, records),
	})
}

func (s *Server) handleClear(c *gin.Context) {
	s.store.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetEnabled(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": s.store.Enabled()})
}

func (s *Server) handleSetEnabled(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing enabled field"})
		return
	}
	s.store.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": s.store.Enabled()})
}

// statsReporter is implemented by providers that keep counters.
type statsReporter interface {
	Stats() map[string]int64
}

type providerJSON struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	URI         string             `json:"uri"`
	Kind        string             `json:"kind"`
	State       string             `json:"state"`
	Active      bool               `json:"active"`
	Information source.Information `json:"information"`
	Stats       map[string]int64   `json:"stats,omitempty"`
}

func describe(in Instance) providerJSON {
	out := providerJSON{
		ID:          in.ID.String(),
		Name:        in.Provider.Name(),
		URI:         in.URI,
		Kind:        in.Kind,
		State:       in.Provider.State().String(),
		Active:      in.Provider.IsActive(),
		Information: in.Provider.Information(),
	}
	if r, ok := in.Provider.(statsReporter); ok {
		out.Stats = r.Stats()
	}
	return out
}

func (s *Server) handleProviders(c *gin.Context) {
	out := make([]providerJSON, len(s.instances))
	for i, in := range s.instances {
		out[i] = describe(in)
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

func (s *Server) handlePause(c *gin.Context) {
	in, ok := s.instance(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such provider"})
		return
	}
	in.Provider.Pause()
	s.logger.Info("paused %s", in.Provider.Name())
	c.JSON(http.StatusOK, describe(in))
}

func (s *Server) handleStart(c *gin.Context) {
	in, ok := s.instance(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such provider"})
		return
	}
	if err := in.Provider.Start(s.ctx); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("started %s", in.Provider.Name())
	c.JSON(http.StatusOK, describe(in))
}
