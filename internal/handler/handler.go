package handler

import (
	"errors"
	"strconv"

	"starfarm/internal/config"
	"starfarm/internal/repository"
	"starfarm/internal/service"
	"starfarm/pkg/clock"
	"starfarm/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg             *config.Config
	accountService  *service.AccountService
	farmService     *service.FarmService
	boostService    *service.BoostService
	referralService *service.ReferralService
	auctionService  *service.AuctionService
	casinoService   *service.CasinoService
	banService      *service.BanService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clk clock.Clock) *Handler {
	return &Handler{
		cfg:             cfg,
		accountService:  service.NewAccountService(db, cfg, clk),
		farmService:     service.NewFarmService(db, rdb, cfg, clk),
		boostService:    service.NewBoostService(db, cfg, clk),
		referralService: service.NewReferralService(db, cfg, clk),
		auctionService:  service.NewAuctionService(db, rdb, cfg, clk),
		casinoService:   service.NewCasinoService(db, cfg, clk),
		banService:      service.NewBanService(db),
	}
}

// writeError 把业务错误翻译成响应码，认不出来的按服务器错误处理
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, "余额不足")
	case errors.Is(err, service.ErrUnknownFarmType):
		response.BusinessError(c, response.CodeUnknownFarmType, "未知的农场类型")
	case errors.Is(err, service.ErrUnknownBoostType):
		response.BusinessError(c, response.CodeUnknownBoostType, "未知的道具类型")
	case errors.Is(err, repository.ErrAuctionNotFound):
		response.BusinessError(c, response.CodeAuctionNotFound, "拍卖不存在或已结束")
	case errors.Is(err, repository.ErrAuctionExpired):
		response.BusinessError(c, response.CodeAuctionExpired, "拍卖已到期")
	case errors.Is(err, repository.ErrAuctionAlreadyEnded):
		response.BusinessError(c, response.CodeAuctionAlreadyEnded, "拍卖已结束")
	case errors.Is(err, repository.ErrBidTooLow):
		response.BusinessError(c, response.CodeBidTooLow, "出价必须高于当前价")
	case errors.Is(err, repository.ErrSelfReferral):
		response.BusinessError(c, response.CodeSelfReferral, "不能邀请自己")
	case errors.Is(err, repository.ErrDuplicateReferral):
		response.BusinessError(c, response.CodeDuplicateReferral, "该用户已被邀请过")
	case errors.Is(err, service.ErrWagerTooSmall):
		response.BusinessError(c, response.CodeWagerTooSmall, "下注金额低于最低限额")
	case errors.Is(err, repository.ErrOptimisticLock):
		response.BusinessError(c, response.CodeConflictRetry, "操作冲突，请重试")
	default:
		response.ServerError(c, err.Error())
	}
}

// ensureNotBanned 封禁用户拦在业务入口之外；检查失败按未封禁放行以外的
// 错误处理。返回 false 表示已经写过响应，调用方直接 return
func (h *Handler) ensureNotBanned(c *gin.Context, userID int64) bool {
	banned, err := h.banService.IsBanned(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return false
	}
	if banned {
		response.BusinessError(c, response.CodeUserBanned, "账户已被封禁")
		return false
	}
	return true
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return 0, false
	}
	return userID, true
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询余额（首次访问即开户）
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": account.UserID,
		"balance": account.Balance,
	})
}

// ListTransactions 查询账户流水
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	records, total, err := h.accountService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 农场相关接口
// ============================================================

// BuyFarmRequest 购买农场请求
type BuyFarmRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	FarmType string `json:"farm_type" binding:"required"`
}

// BuyFarm 购买农场
// POST /api/v1/farm/buy
func (h *Handler) BuyFarm(c *gin.Context) {
	var req BuyFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	farm, err := h.farmService.BuyFarm(c.Request.Context(), req.UserID, req.FarmType)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, farm)
}

// ListFarms 查询名下农场
// GET /api/v1/farm/list?user_id=xxx
func (h *Handler) ListFarms(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	farms, err := h.farmService.ListFarms(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": farms})
}

// ActivateFarmsRequest 激活请求
type ActivateFarmsRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// ActivateFarms 激活名下所有可激活的农场
// POST /api/v1/farm/activate
func (h *Handler) ActivateFarms(c *gin.Context) {
	var req ActivateFarmsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	activated, total, err := h.farmService.ActivateFarms(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"activated": activated,
		"total":     total,
	})
}

// CollectIncome 收取农场产出
// POST /api/v1/farm/collect
func (h *Handler) CollectIncome(c *gin.Context) {
	var req ActivateFarmsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	credited, err := h.farmService.CollectIncome(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"credited": credited})
}

// ============================================================
// 道具相关接口
// ============================================================

// BuyBoostRequest 购买道具请求
type BuyBoostRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	BoostType string `json:"boost_type" binding:"required"`
}

// BuyBoost 购买增益道具
// POST /api/v1/boost/buy
func (h *Handler) BuyBoost(c *gin.Context) {
	var req BuyBoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	boost, err := h.boostService.BuyBoost(c.Request.Context(), req.UserID, req.BoostType)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, boost)
}

// ListBoosts 查询持有道具和总倍率
// GET /api/v1/boost/list?user_id=xxx
func (h *Handler) ListBoosts(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	boosts, err := h.boostService.ListBoosts(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	multiplier, err := h.boostService.TotalMultiplier(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":       boosts,
		"multiplier": multiplier,
	})
}

// ============================================================
// 邀请相关接口
// ============================================================

// RegisterReferralRequest 登记邀请关系请求
type RegisterReferralRequest struct {
	ReferrerID int64 `json:"referrer_id" binding:"required"`
	ReferredID int64 `json:"referred_id" binding:"required"`
}

// RegisterReferral 登记邀请关系并发放一次性奖励
// POST /api/v1/referral/register
func (h *Handler) RegisterReferral(c *gin.Context) {
	var req RegisterReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.referralService.Register(c.Request.Context(), req.ReferrerID, req.ReferredID); err != nil {
		writeError(c, err)
		return
	}

	reward, err := h.referralService.GrantReward(c.Request.Context(), req.ReferredID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"reward": reward})
}

// GetReferralCount 查询邀请人数
// GET /api/v1/referral/count?user_id=xxx
func (h *Handler) GetReferralCount(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	count, err := h.referralService.Count(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"count": count})
}

// ============================================================
// 拍卖相关接口
// ============================================================

// ListAuctions 在场拍卖列表
// GET /api/v1/auction/list
//
// 渲染列表前先把到期的拍卖结算掉、空场时补种——这两步都幂等，
// 被任何并发请求抢先做掉也没关系
func (h *Handler) ListAuctions(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := h.auctionService.SettleExpired(ctx, 20); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.auctionService.SeedIfEmpty(ctx); err != nil {
		writeError(c, err)
		return
	}

	auctions, err := h.auctionService.ListActive(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": auctions})
}

// PlaceBidRequest 出价请求
type PlaceBidRequest struct {
	AuctionID int64 `json:"auction_id" binding:"required"`
	UserID    int64 `json:"user_id" binding:"required"`
	Amount    int64 `json:"amount" binding:"required,gt=0"`
}

// PlaceBid 出价
// POST /api/v1/auction/bid
func (h *Handler) PlaceBid(c *gin.Context) {
	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	auction, err := h.auctionService.PlaceBid(c.Request.Context(), req.AuctionID, req.UserID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, auction)
}

// ListAuctionBids 出价历史
// GET /api/v1/auction/bids?auction_id=xxx
func (h *Handler) ListAuctionBids(c *gin.Context) {
	auctionID, err := strconv.ParseInt(c.Query("auction_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "auction_id 参数错误")
		return
	}

	bids, err := h.auctionService.ListBids(c.Request.Context(), auctionID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": bids})
}

// ============================================================
// 娱乐场相关接口
// ============================================================

// PlayRequest 下注请求
type PlayRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Wager  int64  `json:"wager" binding:"required,gt=0"`
	Color  string `json:"color"` // 轮盘专用
}

// PlayDice 掷骰子
// POST /api/v1/casino/dice
func (h *Handler) PlayDice(c *gin.Context) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	result, err := h.casinoService.PlayDice(c.Request.Context(), req.UserID, req.Wager)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// PlaySlots 老虎机
// POST /api/v1/casino/slots
func (h *Handler) PlaySlots(c *gin.Context) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	result, err := h.casinoService.PlaySlots(c.Request.Context(), req.UserID, req.Wager)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// PlayRoulette 轮盘
// POST /api/v1/casino/roulette
func (h *Handler) PlayRoulette(c *gin.Context) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.ensureNotBanned(c, req.UserID) {
		return
	}

	result, err := h.casinoService.PlayRoulette(c.Request.Context(), req.UserID, req.Wager, req.Color)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 管理接口（需要管理员身份）
// ============================================================

// GrantStarsRequest 调账请求
type GrantStarsRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// GrantStars 给用户发星星
// POST /api/v1/admin/grant/stars
func (h *Handler) GrantStars(c *gin.Context) {
	var req GrantStarsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.AdminAddStars(c.Request.Context(), req.UserID, req.Amount); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "调账成功"})
}

// GrantFarm 发放农场
// POST /api/v1/admin/grant/farm
func (h *Handler) GrantFarm(c *gin.Context) {
	var req BuyFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	farm, err := h.farmService.GrantFarm(c.Request.Context(), req.UserID, req.FarmType)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, farm)
}

// GrantBoost 发放道具
// POST /api/v1/admin/grant/boost
func (h *Handler) GrantBoost(c *gin.Context) {
	var req BuyBoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	boost, err := h.boostService.GrantBoost(c.Request.Context(), req.UserID, req.BoostType)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, boost)
}

// CreateAuctionRequest 开拍请求
type CreateAuctionRequest struct {
	FarmType      string `json:"farm_type" binding:"required"`
	StartingPrice int64  `json:"starting_price" binding:"required,gt=0"`
	DurationHours int    `json:"duration_hours" binding:"required,gt=0"`
}

// CreateAuction 手动开一场拍卖
// POST /api/v1/admin/auction/create
func (h *Handler) CreateAuction(c *gin.Context) {
	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	auction, err := h.auctionService.Create(c.Request.Context(), req.FarmType, req.StartingPrice, req.DurationHours)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, auction)
}

// BanRequest 封禁请求
type BanRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// BanUser 封禁用户
// POST /api/v1/admin/ban
func (h *Handler) BanUser(c *gin.Context) {
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	adminID := c.GetInt64(ctxKeyAdminID)
	if err := h.banService.Ban(c.Request.Context(), req.UserID, adminID, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "已封禁"})
}

// UnbanUser 解封用户
// POST /api/v1/admin/unban
func (h *Handler) UnbanUser(c *gin.Context) {
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.banService.Unban(c.Request.Context(), req.UserID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "已解封"})
}
