package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"starfarm/internal/config"
	"starfarm/internal/metrics"
	"starfarm/internal/model"
	"starfarm/pkg/clock"

	"gorm.io/gorm"
)

var ErrWagerTooSmall = errors.New("下注金额低于最低限额")

// CasinoService 小游戏：骰子、老虎机、轮盘
// 下注扣款和中奖入账在同一个事务里落账，输赢都有流水可查
type CasinoService struct {
	db         *gorm.DB
	cfg        *config.Config
	clk        clock.Clock
	accountSvc *AccountService

	mu  sync.Mutex
	rng *rand.Rand // rand.Rand 非并发安全，必须持锁使用
}

func NewCasinoService(db *gorm.DB, cfg *config.Config, clk clock.Clock) *CasinoService {
	return &CasinoService{
		db:         db,
		cfg:        cfg,
		clk:        clk,
		accountSvc: NewAccountService(db, cfg, clk),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *CasinoService) roll(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// GameResult 单局结果
type GameResult struct {
	Game    string `json:"game"`
	Wager   int64  `json:"wager"`
	Payout  int64  `json:"payout"` // 含本金，0 表示输
	Detail  string `json:"detail"`
	Balance int64  `json:"balance"`
}

// play 落账：先扣注，再按结果入账，整体一个事务
func (s *CasinoService) play(ctx context.Context, userID int64, game string, wager, payout int64, detail string) (*GameResult, error) {
	if wager < s.cfg.Game.MinWager {
		return nil, ErrWagerTooSmall
	}
	if _, err := s.accountSvc.GetAccount(ctx, userID); err != nil {
		return nil, err
	}

	err := runTxWithRetry(s.db, s.cfg.Game.MaxRetryCount, func(tx *gorm.DB) error {
		if err := s.accountSvc.Debit(ctx, tx, userID, wager, model.TransactionTypeWager,
			fmt.Sprintf("%s-下注", game)); err != nil {
			return err
		}
		if payout > 0 {
			return s.accountSvc.Credit(ctx, tx, userID, payout, model.TransactionTypePayout,
				fmt.Sprintf("%s-中奖", game))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WagersPlaced.WithLabelValues(game).Inc()

	balance, err := s.accountSvc.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &GameResult{
		Game:    game,
		Wager:   wager,
		Payout:  payout,
		Detail:  detail,
		Balance: balance,
	}, nil
}

// PlayDice 双方各掷一颗骰子，点数大者胜，赢了拿两倍本金，平局退注
func (s *CasinoService) PlayDice(ctx context.Context, userID int64, wager int64) (*GameResult, error) {
	player := s.roll(6) + 1
	house := s.roll(6) + 1

	var payout int64
	switch {
	case player > house:
		payout = wager * 2
	case player == house:
		payout = wager
	}
	detail := fmt.Sprintf("你掷出%d点，庄家掷出%d点", player, house)
	return s.play(ctx, userID, "dice", wager, payout, detail)
}

var slotSymbols = []string{"⭐", "🌙", "☀️", "☄️"}

// PlaySlots 三个转轮，三同赔三倍，两同赔两倍
func (s *CasinoService) PlaySlots(ctx context.Context, userID int64, wager int64) (*GameResult, error) {
	reels := [3]string{
		slotSymbols[s.roll(len(slotSymbols))],
		slotSymbols[s.roll(len(slotSymbols))],
		slotSymbols[s.roll(len(slotSymbols))],
	}

	var payout int64
	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		payout = wager * 3
	case reels[0] == reels[1] || reels[1] == reels[2] || reels[0] == reels[2]:
		payout = wager * 2
	}
	detail := fmt.Sprintf("%s %s %s", reels[0], reels[1], reels[2])
	return s.play(ctx, userID, "slots", wager, payout, detail)
}

// PlayRoulette 押颜色：0-36 共37格，0 号是绿色。
// 猜中红黑赔四倍；绿色只有一格，猜中赔五倍
func (s *CasinoService) PlayRoulette(ctx context.Context, userID int64, wager int64, color string) (*GameResult, error) {
	if color != "red" && color != "black" && color != "green" {
		return nil, errors.New("只能押 red、black 或 green")
	}

	slot := s.roll(37)
	var outcome string
	switch {
	case slot == 0:
		outcome = "green"
	case slot%2 == 1:
		outcome = "red"
	default:
		outcome = "black"
	}

	var payout int64
	if outcome == color {
		if outcome == "green" {
			payout = wager * 5
		} else {
			payout = wager * 4
		}
	}
	detail := fmt.Sprintf("开出%d号（%s），你押了%s", slot, outcome, color)
	return s.play(ctx, userID, "roulette", wager, payout, detail)
}
