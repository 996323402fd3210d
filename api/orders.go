package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/CampusBite/CampusBite-Backend/api/apistrings"
	"github.com/CampusBite/CampusBite-Backend/db"
	basemodels "github.com/CampusBite/CampusBite-Backend/models"
	"github.com/CampusBite/CampusBite-Backend/services/account"
	"github.com/CampusBite/CampusBite-Backend/services/ledger"
	"github.com/CampusBite/CampusBite-Backend/services/order"
	"github.com/CampusBite/CampusBite-Backend/services/pickup"
	"github.com/CampusBite/CampusBite-Backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Orders struct {
	server *Server
}

func (o Orders) router(server *Server) {
	o.server = server

	serverGroupV1 := server.router.Group("/api/v1/orders")
	serverGroupV1.Use(AuthenticatedMiddleware())
	serverGroupV1.POST("", o.createOrder)
	serverGroupV1.GET("", o.listOrders)
	serverGroupV1.GET(":id", o.getOrder)
	serverGroupV1.PATCH(":id/status", RolesMiddleware(utils.RoleAdmin, utils.RoleVendor), o.updateStatus)
	serverGroupV1.POST(":id/cancel", o.cancelOrder)
	serverGroupV1.POST("verify-pickup", RolesMiddleware(utils.RoleAdmin, utils.RoleVendor), o.verifyPickup)
}

func (o *Orders) createOrder(ctx *gin.Context) {
	request := struct {
		ShopID int64               `json:"shop_id" binding:"required"`
		Items  []order.ItemRequest `json:"items" binding:"required"`
	}{}

	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	created, err := o.server.orderService.Create(ctx, order.CreateOrderParams{
		UserID: activeUser.UserID,
		ShopID: request.ShopID,
		Items:  request.Items,
	})
	if err != nil {
		o.respondOrderError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Order Created Successfully", created))
}

func (o *Orders) listOrders(ctx *gin.Context) {
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	orders, err := o.server.orderService.ListByUser(ctx, activeUser.UserID, limit, offset)
	if err != nil {
		o.server.logger.Error("DB Error", err)
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Orders Fetched Successfully", orders))
}

func (o *Orders) getOrder(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	found, err := o.server.orderService.Get(ctx, orderID)
	if err != nil {
		o.respondOrderError(ctx, err)
		return
	}

	if found.UserID != activeUser.UserID && activeUser.Role != utils.RoleAdmin && activeUser.Role != utils.RoleVendor {
		o.respondOrderError(ctx, order.ErrNotOwner)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Order Fetched Successfully", found))
}

func (o *Orders) updateStatus(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	request := struct {
		Status string `json:"status" binding:"required"`
	}{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	updated, err := o.server.orderService.UpdateStatus(ctx, orderID, order.OrderStatus(request.Status))
	if err != nil {
		o.respondOrderError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Order Status Updated Successfully", updated))
}

func (o *Orders) cancelOrder(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	request := struct {
		Reason string `json:"reason"`
	}{}
	// reason is optional, an empty body is fine
	_ = ctx.ShouldBindJSON(&request)

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	found, err := o.server.orderService.Get(ctx, orderID)
	if err != nil {
		o.respondOrderError(ctx, err)
		return
	}
	if found.UserID != activeUser.UserID && activeUser.Role != utils.RoleAdmin {
		o.respondOrderError(ctx, order.ErrNotOwner)
		return
	}

	cancelled, err := o.server.orderService.Cancel(ctx, orderID, request.Reason)
	if err != nil {
		o.respondOrderError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Order Cancelled Successfully", cancelled))
}

func (o *Orders) verifyPickup(ctx *gin.Context) {
	request := struct {
		QR string `json:"qr" binding:"required"`
	}{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	completed, err := o.server.orderService.Complete(ctx, request.QR)
	if err != nil {
		o.respondOrderError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Pickup Verified Successfully", completed))
}

func (o *Orders) respondOrderError(ctx *gin.Context, err error) {
	var illegal *order.IllegalTransitionError
	var lowBalance *ledger.InsufficientBalanceError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.OrderNotFound))
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidQuantity):
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
	case errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, order.ErrItemUnavailable):
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(err.Error()))
	case errors.As(err, &lowBalance):
		ctx.JSON(http.StatusBadRequest, basemodels.NewErrorWith(apistrings.LowBalance,
			"current balance "+lowBalance.Current.String(),
			"required "+lowBalance.Required.String()))
	case errors.Is(err, ledger.ErrInsufficientBalance):
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.LowBalance))
	case errors.Is(err, ledger.ErrDuplicateReference):
		ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.DuplicateRequest))
	case errors.Is(err, order.ErrNotOwner):
		ctx.JSON(http.StatusForbidden, basemodels.NewError(apistrings.OrderNotYours))
	case errors.Is(err, account.ErrAccountNotFound):
		ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.AccountNotFound))
	case errors.Is(err, account.ErrAccountInactive):
		ctx.JSON(http.StatusForbidden, basemodels.NewError(apistrings.AccountBlocked))
	case errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrCancelRaced):
		ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.CancelWindow))
	case errors.As(err, &illegal), errors.Is(err, order.ErrIllegalTransition):
		ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.BadTransition))
	case errors.Is(err, pickup.ErrAlreadyRedeemed):
		ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.UsedPickupCode))
	case errors.Is(err, pickup.ErrMalformedPayload),
		errors.Is(err, pickup.ErrInvalidChecksum),
		errors.Is(err, pickup.ErrExpired),
		errors.Is(err, pickup.ErrInvalidTimestamp),
		errors.Is(err, pickup.ErrOrderMismatch),
		errors.Is(err, pickup.ErrTokenMismatch),
		errors.Is(err, pickup.ErrShopMismatch):
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.BadPickupCode))
	case db.IsTransient(err):
		ctx.JSON(http.StatusServiceUnavailable, basemodels.NewError(apistrings.StorageBusy))
	default:
		o.server.logger.Error("Order Error", err)
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
	}
}
