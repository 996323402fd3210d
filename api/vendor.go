package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/CampusBite/CampusBite-Backend/api/apistrings"
	"github.com/CampusBite/CampusBite-Backend/db"
	basemodels "github.com/CampusBite/CampusBite-Backend/models"
	"github.com/CampusBite/CampusBite-Backend/services/ledger"
	"github.com/CampusBite/CampusBite-Backend/services/vendor"
	"github.com/CampusBite/CampusBite-Backend/utils"
	"github.com/gin-gonic/gin"
)

type VendorTransfers struct {
	server *Server
}

func (v VendorTransfers) router(server *Server) {
	v.server = server

	serverGroupV1 := server.router.Group("/api/v1/vendor-transfers")
	serverGroupV1.Use(AuthenticatedMiddleware())
	serverGroupV1.GET("", RolesMiddleware(utils.RoleAdmin, utils.RoleVendor), v.listTransfers)
	serverGroupV1.POST("settle", RolesMiddleware(utils.RoleAdmin), v.settlePeriod)
	serverGroupV1.POST(":shop_id/:period/complete", RolesMiddleware(utils.RoleAdmin), v.completeTransfer)
}

func (v *VendorTransfers) settlePeriod(ctx *gin.Context) {
	request := struct {
		Period string `json:"period" binding:"required"`
	}{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	transfers, err := v.server.vendorService.SettlePeriod(ctx, request.Period)
	if err != nil {
		v.respondVendorError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Vendor Transfers Settled Successfully", transfers))
}

func (v *VendorTransfers) listTransfers(ctx *gin.Context) {
	period := ctx.Query("period")
	if period == "" {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	transfers, err := v.server.vendorService.ListByPeriod(ctx, period)
	if err != nil {
		v.respondVendorError(ctx, err)
		return
	}

	// vendors only see their own shop's settlement
	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}
	if activeUser.Role == utils.RoleVendor {
		own := transfers[:0]
		for _, t := range transfers {
			if t.ShopID == activeUser.ShopID {
				own = append(own, t)
			}
		}
		transfers = own
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Vendor Transfers Fetched Successfully", transfers))
}

func (v *VendorTransfers) completeTransfer(ctx *gin.Context) {
	shopID, err := strconv.ParseInt(ctx.Param("shop_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidInput))
		return
	}

	activeUser, err := utils.GetActiveUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.UserNotFound))
		return
	}

	err = v.server.vendorService.MarkCompleted(ctx, shopID, ctx.Param("period"), activeUser.UserID)
	if err != nil {
		v.respondVendorError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Vendor Transfer Completed Successfully", nil))
}

func (v *VendorTransfers) respondVendorError(ctx *gin.Context, err error) {
	var shardErr *ledger.ShardResolutionError
	switch {
	case errors.Is(err, vendor.ErrTransferNotFound):
		ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.TransferNotFound))
	case errors.As(err, &shardErr):
		ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.ShardNotFound))
	case db.IsTransient(err):
		ctx.JSON(http.StatusServiceUnavailable, basemodels.NewError(apistrings.StorageBusy))
	default:
		v.server.logger.Error("Vendor Transfer Error", err)
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
	}
}
