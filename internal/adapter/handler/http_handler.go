package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/core/service"
	"github.com/rl1809/kanban-flow/internal/logger"
	"github.com/rl1809/kanban-flow/internal/port"
)

const (
	actorHeader     = "X-Actor-ID"
	requestIDHeader = "X-Request-ID"
)

type HTTPHandler struct {
	boards      *service.BoardService
	transitions *service.TransitionService
	history     *service.HistoryService
	logger      *zap.Logger
}

func NewHTTPHandler(boards *service.BoardService, transitions *service.TransitionService, history *service.HistoryService, log *zap.Logger) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{boards: boards, transitions: transitions, history: history, logger: log}
}

// NewRouter builds the gin engine with logging, recovery and all routes.
func NewRouter(h *HTTPHandler) *gin.Engine {
	r := gin.New()
	r.Use(logger.Recovery(h.logger), logger.GinMiddleware(h.logger))
	h.RegisterRoutes(r)
	return r
}

func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	boards := api.Group("/boards")
	boards.POST("", h.CreateBoard)
	boards.GET("/:id", h.GetBoard)
	boards.PUT("/:id/link", h.LinkBoards)
	boards.PUT("/:id/threshold-rules", h.SetThresholdRules)
	boards.POST("/:id/items", h.CreateItem)
	boards.GET("/:id/items", h.ListItems)

	items := api.Group("/items")
	items.GET("/:id", h.GetItem)
	items.POST("/:id/transitions", h.Transition)
	items.POST("/:id/reject", h.RejectItem)
	items.POST("/:id/publish", h.PublishItem)
	items.PUT("/:id/preferred-receive-board", h.SetPreferredReceiveBoard)
	items.GET("/:id/alert", h.ItemAlert)

	api.GET("/transfers", h.ListTransfers)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) CreateBoard(c *gin.Context) {
	var req CreateBoardHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	board, err := h.boards.CreateBoard(c.Request.Context(), req.Name, domain.BoardKind(req.Kind), req.ThresholdRules)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBoardResponse(board))
}

func (h *HTTPHandler) GetBoard(c *gin.Context) {
	board, err := h.boards.GetBoard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBoardResponse(board))
}

func (h *HTTPHandler) LinkBoards(c *gin.Context) {
	var req LinkBoardHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.boards.LinkBoards(ctx, c.Param("id"), req.ReceiveBoardID); err != nil {
		h.writeError(c, err)
		return
	}
	board, err := h.boards.GetBoard(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBoardResponse(board))
}

func (h *HTTPHandler) SetThresholdRules(c *gin.Context) {
	var req ThresholdRulesHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	board, err := h.boards.SetThresholdRules(c.Request.Context(), c.Param("id"), req.ThresholdRules)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBoardResponse(board))
}

func (h *HTTPHandler) CreateItem(c *gin.Context) {
	var req CreateItemHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item, err := h.boards.CreateItem(c.Request.Context(), c.Param("id"), domain.ItemFields{
		Name:             req.Name,
		SKU:              req.SKU,
		Quantity:         req.Quantity,
		Supplier:         req.Supplier,
		Category:         req.Category,
		Tags:             req.Tags,
		StockLevel:       req.StockLevel,
		LocationID:       req.LocationID,
		AssignedPersonID: req.AssignedPersonID,
		IsDraft:          req.IsDraft,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toItemResponse(item))
}

// ListItems returns the active items of a board with the rule applied to each.
func (h *HTTPHandler) ListItems(c *gin.Context) {
	alerts, err := h.boards.BoardAlerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]ItemAlertResponse, 0, len(alerts))
	for i := range alerts {
		out = append(out, toItemAlertResponse(&alerts[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	item, err := h.boards.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) Transition(c *gin.Context) {
	var req TransitionHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = req.RequestID
	}

	result, err := h.transitions.Apply(c.Request.Context(), service.TransitionRequest{
		ItemID:     c.Param("id"),
		Column:     req.Column,
		LocationID: req.LocationID,
		Notes:      req.Notes,
		Actor:      c.GetHeader(actorHeader),
		RequestID:  requestID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransitionResponse(result))
}

func (h *HTTPHandler) RejectItem(c *gin.Context) {
	var req RejectHTTPRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	item, err := h.boards.RejectItem(c.Request.Context(), c.Param("id"), c.GetHeader(actorHeader), req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) PublishItem(c *gin.Context) {
	item, err := h.boards.PublishItem(c.Request.Context(), c.Param("id"), c.GetHeader(actorHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) SetPreferredReceiveBoard(c *gin.Context) {
	var req PreferredBoardHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item, err := h.boards.SetPreferredReceiveBoard(c.Request.Context(), c.Param("id"), req.BoardID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) ItemAlert(c *gin.Context) {
	alert, err := h.boards.ItemAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemAlertResponse(alert))
}

func (h *HTTPHandler) ListTransfers(c *gin.Context) {
	var q TransferQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	entries, err := h.history.ListTransfers(c.Request.Context(), domain.TransferFilter{
		ItemID:  q.ItemID,
		BoardID: q.BoardID,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *HTTPHandler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request: " + err.Error()})
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status, reason := classifyError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, ErrorHTTPResponse{Error: "internal error"})
		return
	}
	c.JSON(status, ErrorHTTPResponse{Error: err.Error(), Reason: reason})
}

// classifyError maps service errors to an HTTP status and a stable reason.
func classifyError(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Reason.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, port.ErrVersionConflict), errors.Is(err, service.ErrItemBusy):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, ""
	}
}
