package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Game    GameConfig    `mapstructure:"game"`
	Catalog CatalogConfig `mapstructure:"catalog"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	AuctionResult  string `mapstructure:"auction_result"`
	ReferralReward string `mapstructure:"referral_reward"`
}

// GameConfig 游戏策略常量
// 这些都是运营侧的策略值，不是引擎推导出来的，引擎代码里不允许硬编码
type GameConfig struct {
	InitialStars          int64   `mapstructure:"initial_stars"`           // 新账户初始星星数
	ActivationWindowHours float64 `mapstructure:"activation_window_hours"` // 农场激活后的产出窗口
	CollectCapHours       float64 `mapstructure:"collect_cap_hours"`       // 单次收取最多结算的小时数
	ReferralReward        int64   `mapstructure:"referral_reward"`         // 邀请奖励
	MinWager              int64   `mapstructure:"min_wager"`               // 娱乐场最低下注
	AuctionSeedCount      int     `mapstructure:"auction_seed_count"`      // 无在场拍卖时自动补种的数量
	AuctionSeedHours      int     `mapstructure:"auction_seed_hours"`      // 补种拍卖的持续时长（小时）
	MaxRetryCount         int     `mapstructure:"max_retry_count"`
	AdminIDs              []int64 `mapstructure:"admin_ids"`
}

// CatalogConfig 资产目录（农场/增益道具），只读配置
type CatalogConfig struct {
	Farms  map[string]FarmTypeConfig  `mapstructure:"farms"`
	Boosts map[string]BoostTypeConfig `mapstructure:"boosts"`
}

type FarmTypeConfig struct {
	Name          string `mapstructure:"name"`
	Price         int64  `mapstructure:"price"`
	IncomePerHour int64  `mapstructure:"income_per_hour"`
	Tier          int    `mapstructure:"tier"` // 越大越高级，拍卖补种只取最高几档
}

type BoostTypeConfig struct {
	Name       string  `mapstructure:"name"`
	Price      int64   `mapstructure:"price"`
	Multiplier float64 `mapstructure:"multiplier"`
}

// FarmType 查目录，第二个返回值表示类型是否存在
func (c *CatalogConfig) FarmType(typeID string) (FarmTypeConfig, bool) {
	ft, ok := c.Farms[typeID]
	return ft, ok
}

func (c *CatalogConfig) BoostType(typeID string) (BoostTypeConfig, bool) {
	bt, ok := c.Boosts[typeID]
	return bt, ok
}

func (g *GameConfig) IsAdmin(userID int64) bool {
	for _, id := range g.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
