package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/persian-faqbot/internal/domain/chat"
	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/internal/domain/faq"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	chatSvc chat.Service
	faqs    faq.Store
	logger  *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(chatSvc chat.Service, faqs faq.Store, logger *slog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		faqs:    faqs,
		logger:  logger.With("component", "http.handler"),
	}
}

// Chat answers a single user message.
func (h *Handler) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	req.RequestID = requestID(c)

	resp, err := h.chatSvc.Chat(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListLogs returns one page of chat log entries, newest first.
func (h *Handler) ListLogs(c *gin.Context) {
	query, err := parseLogQuery(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	page, svcErr := h.chatSvc.Logs(c.Request.Context(), query)
	if svcErr != nil {
		abortWithError(c, fromDomainError(svcErr))
		return
	}
	c.JSON(http.StatusOK, page)
}

// LogStats summarizes answered and unanswered traffic.
func (h *Handler) LogStats(c *gin.Context) {
	stats, err := h.chatSvc.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportLogs archives the filtered log page as CSV.
func (h *Handler) ExportLogs(c *gin.Context) {
	query, err := parseLogQuery(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	result, svcErr := h.chatSvc.ExportLogs(c.Request.Context(), query)
	if svcErr != nil {
		abortWithError(c, fromDomainError(svcErr))
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListFAQs returns every stored entry, active or not, optionally narrowed
// to one category.
func (h *Handler) ListFAQs(c *gin.Context) {
	var (
		entries []faq.Entry
		err     error
	)
	if raw := c.Query("category_id"); raw != "" {
		categoryID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || categoryID <= 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "category_id must be a positive integer", parseErr))
			return
		}
		entries, err = h.faqs.ListByCategory(c.Request.Context(), categoryID)
	} else {
		entries, err = h.faqs.List(c.Request.Context())
	}
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	if entries == nil {
		entries = []faq.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (h *Handler) GetFAQ(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := h.faqs.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// UpsertFAQ creates an entry or replaces the answer of the entry with the same question.
func (h *Handler) UpsertFAQ(c *gin.Context) {
	var req faq.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	entry, err := h.faqs.Upsert(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) UpdateFAQ(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req faq.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	entry, err := h.faqs.Update(c.Request.Context(), id, req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) DeleteFAQ(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.faqs.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ReindexFAQs recomputes every fingerprint with the current embedder.
func (h *Handler) ReindexFAQs(c *gin.Context) {
	count, err := h.faqs.Reindex(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"reindexed": count})
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.faqs.Categories(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req faq.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	category, err := h.faqs.CreateCategory(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req faq.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	category, err := h.faqs.UpdateCategory(c.Request.Context(), id, req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category and leaves its entries uncategorised.
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.faqs.DeleteCategory(c.Request.Context(), id); err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Health reports whether the FAQ store is reachable.
func (h *Handler) Health(c *gin.Context) {
	version, err := h.faqs.Version(c.Request.Context())
	if err != nil {
		h.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "catalogVersion": version})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "id must be a positive integer", err))
		return 0, false
	}
	return id, true
}

// parseLogQuery reads limit (or its alias page_size), page, from, to,
// unanswered and source. Pages are 1-based.
func parseLogQuery(c *gin.Context) (chatlog.Query, *HTTPError) {
	var query chatlog.Query
	for _, name := range []string{"limit", "page_size"} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return query, NewHTTPError(http.StatusBadRequest, "invalid_request", name+" must be a non-negative integer", err)
		}
		query.Limit = limit
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return query, NewHTTPError(http.StatusBadRequest, "invalid_request", "page must be a positive integer", err)
		}
		query.Offset = (page - 1) * chatlog.NormalizeQuery(query).Limit
	}
	query.Source = c.Query("source")
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &query.From}, {"to", &query.To}} {
		raw := c.Query(bound.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, NewHTTPError(http.StatusBadRequest, "invalid_request", bound.name+" must be an RFC3339 timestamp", err)
		}
		*bound.dst = &ts
	}
	if raw := c.Query("unanswered"); raw != "" {
		unanswered, err := strconv.ParseBool(raw)
		if err != nil {
			return query, NewHTTPError(http.StatusBadRequest, "invalid_request", "unanswered must be a boolean", err)
		}
		query.UnansweredOnly = unanswered
	}
	return query, nil
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
