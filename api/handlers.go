package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/xquad-eval/internal/task"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListLanguages(c *gin.Context) {
	langs := task.Languages()
	out := make([]gin.H, 0, len(langs))
	for _, l := range langs {
		out = append(out, gin.H{
			"code":     l.Code,
			"name":     l.Name,
			"selector": "xquad." + l.Code,
		})
	}
	c.JSON(http.StatusOK, gin.H{"languages": out, "metrics": task.DefaultMetricNames()})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results store unavailable"})
		return
	}

	language := strings.TrimSpace(c.Query("language"))
	if language != "" && !task.Supported(language) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown language " + language})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(c.Request.Context(), language, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results store unavailable"})
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s == nil || s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results store unavailable"})
		return
	}

	language := strings.TrimSpace(c.Query("language"))
	if language == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing language"})
		return
	}
	if !task.Supported(language) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown language " + language})
		return
	}

	metric := strings.TrimSpace(c.Query("metric"))
	if metric == "" {
		metric = "f1"
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.store.Leaderboard(c.Request.Context(), language, metric, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": language, "metric": metric, "runs": runs})
}

func (s *Server) handleGetModelHistory(c *gin.Context) {
	if s == nil || s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results store unavailable"})
		return
	}

	model := strings.TrimSpace(c.Query("model"))
	language := strings.TrimSpace(c.Query("language"))
	if model == "" || language == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model or language"})
		return
	}

	runs, err := s.store.ModelHistory(c.Request.Context(), model, language)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": model, "language": language, "runs": runs})
}
