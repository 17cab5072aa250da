package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	identitydomain "github.com/revspine/reconciler/internal/identity/domain"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	reconciliationdomain "github.com/revspine/reconciler/internal/reconciliation/domain"
	sessiondomain "github.com/revspine/reconciler/internal/session/domain"
	"github.com/revspine/reconciler/pkg/db/pagination"
)

// paginate applies cursor-based pagination to an already-fetched,
// id-sorted slice, mirroring the teacher's list-endpoint convention of
// keyset pagination over a stable sort key rather than OFFSET.
func paginate[T any](rows []T, idOf func(T) string, page pagination.Pagination) ([]T, *pagination.PageInfo, error) {
	sort.Slice(rows, func(i, j int) bool { return idOf(rows[i]) < idOf(rows[j]) })

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, err
		}
		start := 0
		for start < len(rows) && idOf(rows[start]) <= cursor.ID {
			start++
		}
		rows = rows[start:]
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 10
	}

	ptrs := make([]*T, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(ptrs, int32(limit), func(r *T) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: idOf(*r)})
		return token
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, pageInfo, nil
}

type createSessionRequest struct {
	Currency     string  `json:"currency"`
	PeriodStart  string  `json:"period_start"`
	PeriodEnd    string  `json:"period_end"`
	ToleranceUSD float64 `json:"tolerance"`
}

func (s *Server) CreateSession(c *gin.Context) {
	var req createSessionRequest
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			AbortWithError(c, sessiondomain.ErrUnknownSetting)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	periodStart, err := parseRequiredTime(req.PeriodStart)
	if err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_period_start", "invalid period_start"))
		return
	}
	periodEnd, err := parseRequiredTime(req.PeriodEnd)
	if err != nil {
		AbortWithError(c, newValidationError("period_end", "invalid_period_end", "invalid period_end"))
		return
	}

	session, err := s.manager.Create(c.Request.Context(), sessiondomain.Settings{
		Currency:     strings.TrimSpace(req.Currency),
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		ToleranceUSD: req.ToleranceUSD,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) ValidateSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	var tables ingestiondomain.RawTables
	if err := c.ShouldBindJSON(&tables); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.manager.Validate(c.Request.Context(), sessionID, tables)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetIdentity(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	spine, err := s.manager.IdentityGet(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": spine})
}

type decideIdentityRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) DecideIdentity(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	matchID := strings.TrimSpace(c.Param("match_id"))

	var req decideIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	decision := identitydomain.Decision(strings.TrimSpace(req.Decision))
	if decision != identitydomain.DecisionConfirmed && decision != identitydomain.DecisionRejected {
		AbortWithError(c, newValidationError("decision", "invalid_decision", "decision must be confirmed or rejected"))
		return
	}

	spine, err := s.manager.IdentityDecide(c.Request.Context(), sessionID, matchID, decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": spine})
}

func (s *Server) UndoIdentity(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	spine, err := s.manager.IdentityUndo(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": spine})
}

func (s *Server) ResetIdentity(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	spine, err := s.manager.IdentityReset(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": spine})
}

type analyzeSessionRequest struct {
	BypassReview bool `json:"bypass_review"`
}

func (s *Server) AnalyzeSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	var req analyzeSessionRequest
	// body is optional: a missing/empty body means bypass_review defaults to false.
	_ = c.ShouldBindJSON(&req)

	if err := s.manager.Analyze(c.Request.Context(), sessionID, req.BypassReview); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"accepted": true}})
}

func (s *Server) GetStatus(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	processing, status, err := s.manager.Status(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"status":     status,
		"processing": processing,
	}})
}

func (s *Server) CancelSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	if err := s.manager.Cancel(c.Request.Context(), sessionID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": true}})
}

func (s *Server) GetDashboard(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	result, err := s.manager.Dashboard(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListAccounts(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	filter := sessiondomain.AccountFilter{
		Status: reconciliationdomain.VarianceStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.manager.Accounts(c.Request.Context(), sessionID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pageRows, pageInfo, err := paginateAccounts(rows, page)
	if err != nil {
		AbortWithError(c, newValidationError("page_token", "invalid_page_token", "invalid page_token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pageRows, "page_info": pageInfo})
}

func paginateAccounts(rows []sessiondomain.AccountRow, page pagination.Pagination) ([]sessiondomain.AccountRow, *pagination.PageInfo, error) {
	return paginate(rows, func(r sessiondomain.AccountRow) string { return r.RsxID }, page)
}

func (s *Server) GetLineage(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	rsxID := strings.TrimSpace(c.Param("rsx_id"))

	result, err := s.manager.Lineage(c.Request.Context(), sessionID, rsxID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListExclusions(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	reasonCode := strings.TrimSpace(c.Query("reason_code"))

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.manager.Exclusions(c.Request.Context(), sessionID, reasonCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pageRows, pageInfo, err := paginate(rows, func(r sessiondomain.ExclusionRow) string { return r.RecordID }, page)
	if err != nil {
		AbortWithError(c, newValidationError("page_token", "invalid_page_token", "invalid page_token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pageRows, "page_info": pageInfo})
}
