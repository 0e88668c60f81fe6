package repository

import (
	"context"
	"errors"
	"time"

	"starfarm/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAuctionNotFound     = errors.New("拍卖不存在")
	ErrAuctionExpired      = errors.New("拍卖已到期")
	ErrAuctionAlreadyEnded = errors.New("拍卖已结束")
	ErrBidTooLow           = errors.New("出价必须高于当前价")
	ErrAuctionConflict     = errors.New("拍卖状态已被并发修改，请重试")
)

type AuctionRepository struct {
	db *gorm.DB
}

func NewAuctionRepository(db *gorm.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

func (r *AuctionRepository) Create(ctx context.Context, auction *model.Auction) error {
	return r.db.WithContext(ctx).Create(auction).Error
}

func (r *AuctionRepository) GetByID(ctx context.Context, tx *gorm.DB, auctionID int64) (*model.Auction, error) {
	if tx == nil {
		tx = r.db
	}
	var auction model.Auction
	err := tx.WithContext(ctx).Where("id = ?", auctionID).First(&auction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}
	return &auction, nil
}

// ListActive 在场拍卖，最先截止的排前面。纯读视图，不翻转任何状态：
// 已到期但还没被翻转的行留给下一次出价或结算扫描处理
func (r *AuctionRepository) ListActive(ctx context.Context, now time.Time) ([]*model.Auction, error) {
	var auctions []*model.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time > ?", model.AuctionStatusActive, now).
		Order("end_time ASC").
		Find(&auctions).Error
	return auctions, err
}

func (r *AuctionRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*model.Auction, error) {
	var auctions []*model.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", model.AuctionStatusActive, now).
		Limit(limit).
		Find(&auctions).Error
	return auctions, err
}

// MarkEnded 把拍卖翻到终态
// WHERE status = ACTIVE 的条件让 active -> ended 只发生一次：并发结算里
// 只有第一个调用影响 1 行，其余都拿到 ErrAuctionAlreadyEnded
func (r *AuctionRepository) MarkEnded(ctx context.Context, tx *gorm.DB, auctionID int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND status = ?", auctionID, model.AuctionStatusActive).
		Update("status", model.AuctionStatusEnded)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuctionAlreadyEnded
	}
	return nil
}

// UpdateBid 写入新的当前价和出价人
// WHERE 里带上读到时的旧价和 ACTIVE 状态：价位或状态已被并发改动时影响
// 0 行，调用方收到冲突错误整体回滚，不会出现"退了旧托管却没扣到新托管"
func (r *AuctionRepository) UpdateBid(ctx context.Context, tx *gorm.DB, auctionID int64, prevBid int64, amount int64, bidderID int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND status = ? AND current_bid = ?", auctionID, model.AuctionStatusActive, prevBid).
		Updates(map[string]interface{}{
			"current_bid":       amount,
			"current_bidder_id": bidderID,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuctionConflict
	}
	return nil
}

func (r *AuctionRepository) CreateBid(ctx context.Context, tx *gorm.DB, bid *model.AuctionBid) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(bid).Error
}

func (r *AuctionRepository) ListBids(ctx context.Context, auctionID int64) ([]*model.AuctionBid, error) {
	var bids []*model.AuctionBid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("id ASC").
		Find(&bids).Error
	return bids, err
}
