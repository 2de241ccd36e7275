package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bank-ledger/internal/auth"
	"bank-ledger/internal/domain"
	"bank-ledger/internal/service"
)

// Handler wires HTTP routes to the ledger service.
type Handler struct {
	ledger service.LedgerService
	tokens *auth.TokenManager
	logger *logrus.Logger
}

func NewHandler(ledger service.LedgerService, tokens *auth.TokenManager, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		ledger: ledger,
		tokens: tokens,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	initValidator()
	router.Use(requestLogger(h.logger), corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.POST("/password/reset", h.resetPassword)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	account := api.Group("", h.requireSession())
	{
		account.POST("/logout", h.logout)
		account.POST("/password/change", h.changePassword)
		account.GET("/balance", h.balance)
		account.POST("/deposit", h.deposit)
		account.POST("/withdraw", h.withdraw)
		account.GET("/transactions", h.listTransactions)
		account.POST("/transactions/export", h.exportTransactions)
		account.GET("/transactions/export.csv", h.downloadTransactions)
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"max=64"`
	Password string `json:"password" binding:"max=72"`
	Age      int    `json:"age"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password" binding:"max=72"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" binding:"max=72"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type exportRequest struct {
	Destination string `json:"destination" binding:"required"`
}

type TransactionResponse struct {
	Username string `json:"username"`
	Type     string `json:"type"`
	Amount   int64  `json:"amount"`
	Time     string `json:"time"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.ledger.Register(c.Request.Context(), req.Username, req.Password, req.Age)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"username": user.Username,
		"age":      user.Age,
		"balance":  user.Balance,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	session, err := h.ledger.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	token, exp, err := h.tokens.Issue(session.ID, session.Username)
	if err != nil {
		h.ledger.Logout(c.Request.Context(), session)
		h.fail(c, fmt.Errorf("issue token: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.Format(time.RFC3339),
		"username":   session.Username,
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.ledger.ResetPassword(c.Request.Context(), req.Username, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": req.Username})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.ledger.ChangePassword(c.Request.Context(), sessionFrom(c), req.OldPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": true})
}

func (h *Handler) logout(c *gin.Context) {
	h.ledger.Logout(c.Request.Context(), sessionFrom(c))
	c.Status(http.StatusNoContent)
}

func (h *Handler) balance(c *gin.Context) {
	balance, err := h.ledger.CheckBalance(c.Request.Context(), sessionFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *Handler) deposit(c *gin.Context) {
	h.applyAmount(c, h.ledger.Deposit)
}

func (h *Handler) withdraw(c *gin.Context) {
	h.applyAmount(c, h.ledger.Withdraw)
}

func (h *Handler) applyAmount(c *gin.Context, op func(context.Context, *service.Session, int64) (*domain.Transaction, error)) {
	var req amountRequest
	if !bind(c, &req) {
		return
	}

	session := sessionFrom(c)
	entry, err := op(c.Request.Context(), session, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	balance, err := h.ledger.CheckBalance(c.Request.Context(), session)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction": transactionToResponse(*entry),
		"balance":     balance,
	})
}

func (h *Handler) listTransactions(c *gin.Context) {
	history, err := h.ledger.ListHistory(c.Request.Context(), sessionFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]TransactionResponse, len(history))
	for i := range history {
		resp[i] = transactionToResponse(history[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) exportTransactions(c *gin.Context) {
	var req exportRequest
	if !bind(c, &req) {
		return
	}

	location, err := h.ledger.ExportHistory(c.Request.Context(), sessionFrom(c), req.Destination)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}

func (h *Handler) downloadTransactions(c *gin.Context) {
	session := sessionFrom(c)

	var buf bytes.Buffer
	if _, err := h.ledger.WriteHistoryCSV(c.Request.Context(), session, &buf); err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-history.csv"`, session.Username))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": bindingDetails(err)})
		return false
	}
	return true
}

// fail maps ledger errors to status codes; unknown errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("request_id", c.GetString(ctxRequestIDKey)).Error("request failed")
		if errors.Is(err, service.ErrWriteError) {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrDuplicateUser), errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func transactionToResponse(tx domain.Transaction) TransactionResponse {
	return TransactionResponse{
		Username: tx.Username,
		Type:     string(tx.Type),
		Amount:   tx.Amount,
		Time:     tx.Time.Format(domain.TimeLayout),
	}
}
