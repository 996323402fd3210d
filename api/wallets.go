package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/CampusBite/CampusBite-Backend/api/apistrings"
	"github.com/CampusBite/CampusBite-Backend/db"
	basemodels "github.com/CampusBite/CampusBite-Backend/models"
	"github.com/CampusBite/CampusBite-Backend/services/account"
	"github.com/CampusBite/CampusBite-Backend/services/ledger"
	"github.com/CampusBite/CampusBite-Backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	server *Server
}

func (w Wallet) router(server *Server) {
	w.server = server

	serverGroupV1 := server.router.Group("/api/v1/wallets")
	serverGroupV1.Use(AuthenticatedMiddleware())
	serverGroupV1.GET("balance", w.getBalance)
	serverGroupV1.GET("transactions", w.getTransactions)
	serverGroupV1.GET("transactions/:shard/:id", w.getTransaction)
	serverGroupV1.POST("credit", RolesMiddleware(utils.RoleAdmin, utils.RoleCashier), w.credit)
	serverGroupV1.POST("debit", RolesMiddleware(utils.RoleAdmin), w.debit)
}

func (w *Wallet) getBalance(ctx *gin.Context) {
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	acc, err := w.server.accounts.Get(ctx, activeUser.UserID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.AccountNotFound))
			return
		}
		w.server.logger.Error("DB Error", err)
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Wallet Balance Fetched Successfully", gin.H{
		"account_id": acc.ID,
		"balance":    acc.Balance,
		"is_active":  acc.IsActive,
	}))
}

func (w *Wallet) credit(ctx *gin.Context) {
	request := struct {
		AccountID   int64  `json:"account_id" binding:"required"`
		Amount      string `json:"amount" binding:"required"`
		Source      string `json:"source"`
		Description string `json:"description"`
		Reference   string `json:"reference"`
	}{}

	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	amount, err := decimal.NewFromString(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidAmount))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	tx, err := w.server.ledgerService.Credit(ctx, ledger.CreditParams{
		AccountID:   request.AccountID,
		Amount:      amount,
		Source:      ledger.TransactionSource(request.Source),
		Description: request.Description,
		ProcessedBy: activeUser.UserID,
		Reference:   request.Reference,
	})
	if err != nil {
		w.respondLedgerError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Wallet Credited Successfully", tx))
}

func (w *Wallet) debit(ctx *gin.Context) {
	request := struct {
		AccountID   int64  `json:"account_id" binding:"required"`
		Amount      string `json:"amount" binding:"required"`
		Description string `json:"description"`
		Reference   string `json:"reference"`
	}{}

	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	amount, err := decimal.NewFromString(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidAmount))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	tx, err := w.server.ledgerService.Debit(ctx, ledger.DebitParams{
		AccountID:   request.AccountID,
		Amount:      amount,
		Description: request.Description,
		ProcessedBy: activeUser.UserID,
		Reference:   request.Reference,
	})
	if err != nil {
		w.respondLedgerError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Wallet Debited Successfully", tx))
}

func (w *Wallet) getTransactions(ctx *gin.Context) {
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	filter := ledger.Filter{}

	accountID := activeUser.UserID
	if raw := ctx.Query("account_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
			return
		}
		// only staff may read another user's history
		if !activeUser.CanViewAccount(parsed) {
			ctx.JSON(http.StatusForbidden, basemodels.NewError(apistrings.AccessDenied))
			return
		}
		accountID = parsed
	}
	filter.AccountID = &accountID

	if raw := ctx.Query("type"); raw != "" {
		t := ledger.TransactionType(raw)
		filter.Type = &t
	}
	if raw := ctx.Query("source"); raw != "" {
		s := ledger.TransactionSource(raw)
		filter.Source = &s
	}
	if raw := ctx.Query("status"); raw != "" {
		s := ledger.TransactionStatus(raw)
		filter.Status = &s
	}
	if raw := ctx.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
			return
		}
		filter.From = &from
	}
	if raw := ctx.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
			return
		}
		filter.To = &to
	}
	filter.Page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	page, err := w.server.queryEngine.Query(ctx, filter)
	if err != nil {
		if db.IsTransient(err) {
			ctx.JSON(http.StatusServiceUnavailable, basemodels.NewError(apistrings.StorageBusy))
			return
		}
		w.server.logger.Error("DB Error", err)
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Wallet Transactions Fetched Successfully", page))
}

func (w *Wallet) getTransaction(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	tx, err := w.server.queryEngine.GetByID(ctx, ctx.Param("shard"), id)
	if err != nil {
		var shardErr *ledger.ShardResolutionError
		if errors.As(err, &shardErr) {
			ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.ShardNotFound))
			return
		}
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.TxNotFound))
			return
		}
		w.server.logger.Error("DB Error", err)
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}
	if !activeUser.CanViewAccount(tx.AccountID) {
		ctx.JSON(http.StatusForbidden, basemodels.NewError(apistrings.AccessDenied))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Wallet Transaction Fetched Successfully", tx))
}

func (w *Wallet) respondLedgerError(ctx *gin.Context, err error) {
	var lowBalance *ledger.InsufficientBalanceError
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidAmount))
	case errors.As(err, &lowBalance):
		ctx.JSON(http.StatusBadRequest, basemodels.NewErrorWith(apistrings.LowBalance,
			"current balance "+lowBalance.Current.String(),
			"required "+lowBalance.Required.String()))
	case errors.Is(err, ledger.ErrInsufficientBalance):
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.LowBalance))
	case errors.Is(err, ledger.ErrDuplicateReference):
		ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.DuplicateRequest))
	case errors.Is(err, account.ErrAccountNotFound):
		ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.AccountNotFound))
	case errors.Is(err, account.ErrAccountInactive):
		ctx.JSON(http.StatusForbidden, basemodels.NewError(apistrings.AccountBlocked))
	case errors.Is(err, account.ErrAccountNotApproved):
		ctx.JSON(http.StatusForbidden, basemodels.NewError(apistrings.AccountPending))
	case db.IsTransient(err):
		ctx.JSON(http.StatusServiceUnavailable, basemodels.NewError(apistrings.StorageBusy))
	default:
		w.server.logger.Error("Ledger Error", err)
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
	}
}
