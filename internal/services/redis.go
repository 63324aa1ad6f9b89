package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"mines-backend/internal/config"
	"mines-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisService backs every collaborator interface with the fast store.
// Keys are updated independently; there is no cross-key transaction, so
// the balance-history list and the session keys are best-effort.
type RedisService struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{client: client, ctx: ctx}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// ---- AccountStore ----

func (s *RedisService) GetWallet(playerID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, playerID)

	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		wallet := &models.Wallet{
			PlayerID: playerID,
			Balance:  DefaultBalance,
		}
		if err := s.SaveWallet(wallet); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %v", err)
		}
		return wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %v", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}

	return &wallet, nil
}

func (s *RedisService) SaveWallet(wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.PlayerID)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %v", err)
	}

	return s.client.Set(s.ctx, key, data, 0).Err()
}

func (s *RedisService) Balance(playerID int64) (float64, error) {
	wallet, err := s.GetWallet(playerID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

// adjustBalanceScript applies a delta in one round trip so concurrent
// adjustments cannot interleave. Negative deltas are stake debits and
// count toward total_wagered; positive deltas are winnings.
var adjustBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	local balance = wallet.balance + delta
	if balance < 0 then
		return redis.error_reply("insufficient balance")
	end

	wallet.balance = balance
	if delta < 0 then
		wallet.total_wagered = (wallet.total_wagered or 0) - delta
	else
		wallet.total_won = (wallet.total_won or 0) + delta
	end

	redis.call("SET", key, cjson.encode(wallet))

	return tostring(balance)
`)

func (s *RedisService) AdjustBalance(playerID int64, delta float64) (float64, error) {
	// Make sure the wallet exists before the script runs.
	if _, err := s.GetWallet(playerID); err != nil {
		return 0, err
	}

	key := fmt.Sprintf(KeyWallet, playerID)
	res, err := adjustBalanceScript.Run(s.ctx, s.client, []string{key}, delta).Result()
	if err != nil {
		if strings.Contains(err.Error(), "insufficient balance") {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to adjust balance: %v", err)
	}

	balance, err := strconv.ParseFloat(fmt.Sprint(res), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected balance reply %q: %v", res, err)
	}
	return balance, nil
}

func (s *RedisService) Profile(playerID int64) (*models.PlayerProfile, error) {
	key := fmt.Sprintf(KeyUserInfo, playerID)

	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("player %d not found", playerID)
	}
	if err != nil {
		return nil, err
	}

	var profile models.PlayerProfile
	err = json.Unmarshal([]byte(data), &profile)
	return &profile, err
}

func (s *RedisService) StoreProfile(profile *models.PlayerProfile) error {
	key := fmt.Sprintf(KeyUserInfo, profile.ID)

	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	return s.client.Set(s.ctx, key, data, TTLUserInfo).Err()
}

// ---- GameStore ----

func (s *RedisService) AcquireActionLock(playerID int64, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyActionLock, playerID)
	return s.client.SetNX(s.ctx, key, "1", ttl).Result()
}

func (s *RedisService) ActiveSession(playerID int64) (*models.MinesSession, error) {
	flagKey := fmt.Sprintf(KeyMinesActive, playerID)

	flag, err := s.client.Get(s.ctx, flagKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session flag: %v", err)
	}
	if flag != "1" {
		return nil, nil
	}

	data, err := s.client.Get(s.ctx, fmt.Sprintf(KeyMinesSession, playerID)).Result()
	if err == redis.Nil || data == "" {
		// Flag without payload: a crash landed between the two writes.
		log.Printf("session flag set without payload, clearing: player=%d", playerID)
		s.client.Del(s.ctx, flagKey)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session payload: %v", err)
	}

	var session models.MinesSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("%w: bad session payload: %v", ErrInternalInconsistency, err)
	}

	return &session, nil
}

func (s *RedisService) SaveSession(session *models.MinesSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %v", err)
	}

	payloadKey := fmt.Sprintf(KeyMinesSession, session.PlayerID)
	if err := s.client.Set(s.ctx, payloadKey, data, TTLSession).Err(); err != nil {
		return fmt.Errorf("failed to save session: %v", err)
	}

	flagKey := fmt.Sprintf(KeyMinesActive, session.PlayerID)
	return s.client.Set(s.ctx, flagKey, "1", TTLSession).Err()
}

func (s *RedisService) ClearSession(playerID int64) error {
	flagKey := fmt.Sprintf(KeyMinesActive, playerID)
	payloadKey := fmt.Sprintf(KeyMinesSession, playerID)

	if err := s.client.Del(s.ctx, flagKey).Err(); err != nil {
		return err
	}
	return s.client.Del(s.ctx, payloadKey).Err()
}

func (s *RedisService) BonusCredit(playerID int64) (int, error) {
	key := fmt.Sprintf(KeyBonusCredit, playerID)

	val, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	credit, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("unexpected bonus credit %q: %v", val, err)
	}
	return credit, nil
}

func (s *RedisService) ConsumeBonusCredit(playerID int64) error {
	key := fmt.Sprintf(KeyBonusCredit, playerID)
	return s.client.Set(s.ctx, key, "0", 0).Err()
}

// GrantBonusCredit banks a bonus for the player's next game. Operator
// tooling calls this; active games only consume.
func (s *RedisService) GrantBonusCredit(playerID int64) error {
	key := fmt.Sprintf(KeyBonusCredit, playerID)
	return s.client.Set(s.ctx, key, "1", 0).Err()
}

// ---- RiskConfig ----

func (s *RedisService) PoolBalance() (float64, error) {
	val, err := s.client.Get(s.ctx, KeyRiskPool).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(val, 64)
}

// adjustPoolScript serializes pool updates so two concurrent wins cannot
// over-draw it.
var adjustPoolScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])

	local pool = tonumber(redis.call("GET", key) or "0")
	pool = pool + delta
	if pool < 0 then
		return redis.error_reply("pool overdrawn")
	end

	redis.call("SET", key, tostring(pool))
	return tostring(pool)
`)

func (s *RedisService) AdjustPool(delta float64) (float64, error) {
	res, err := adjustPoolScript.Run(s.ctx, s.client, []string{KeyRiskPool}, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to adjust pool: %v", err)
	}
	return strconv.ParseFloat(fmt.Sprint(res), 64)
}

func (s *RedisService) AddProfit(delta float64) error {
	return s.client.IncrByFloat(s.ctx, KeyRiskProfit, delta).Err()
}

func (s *RedisService) IsPlayerExempt(playerID int64) (bool, error) {
	return s.client.SIsMember(s.ctx, KeyRiskExempt, playerID).Result()
}

func (s *RedisService) SetPlayerExempt(playerID int64, exempt bool) error {
	if exempt {
		return s.client.SAdd(s.ctx, KeyRiskExempt, playerID).Err()
	}
	return s.client.SRem(s.ctx, KeyRiskExempt, playerID).Err()
}

func (s *RedisService) RiskEnabled() (bool, error) {
	val, err := s.client.Get(s.ctx, KeyRiskEnabled).Result()
	if err == redis.Nil {
		// Disabled until the operator seeds the pool and flips the flag;
		// an empty pool with the gate on would force-lose every game.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

func (s *RedisService) SetRiskEnabled(enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}
	return s.client.Set(s.ctx, KeyRiskEnabled, val, 0).Err()
}

// ---- HistoryLedger ----

func (s *RedisService) AppendBalanceHistory(playerID int64, entry *models.BalanceHistoryEntry) error {
	key := fmt.Sprintf(KeyBalanceHistory, playerID)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := s.client.RPush(s.ctx, key, data).Err(); err != nil {
		return err
	}
	return s.client.LTrim(s.ctx, key, -BalanceHistoryCap, -1).Err()
}

func (s *RedisService) BalanceHistory(playerID int64, limit int64) ([]*models.BalanceHistoryEntry, error) {
	if limit <= 0 || limit > BalanceHistoryCap {
		limit = 50
	}

	key := fmt.Sprintf(KeyBalanceHistory, playerID)

	items, err := s.client.LRange(s.ctx, key, -limit, -1).Result()
	if err != nil {
		return nil, err
	}

	var entries []*models.BalanceHistoryEntry
	for _, item := range items {
		var entry models.BalanceHistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

// ---- EventFeed ----

func (s *RedisService) Publish(topic string, event *models.FeedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := s.client.Publish(s.ctx, topic, data).Err(); err != nil {
		return err
	}

	if err := s.client.RPush(s.ctx, KeyRecentGames, data).Err(); err != nil {
		return err
	}
	return s.client.LTrim(s.ctx, KeyRecentGames, -RecentGamesLimit, -1).Err()
}

func (s *RedisService) RecentGames() ([]*models.FeedEvent, error) {
	items, err := s.client.LRange(s.ctx, KeyRecentGames, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var events []*models.FeedEvent
	for _, item := range items {
		var event models.FeedEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, &event)
	}

	return events, nil
}

// SubscribeHistory streams resolution events published on the history
// channel. The returned closer tears the subscription down.
func (s *RedisService) SubscribeHistory(ctx context.Context) (<-chan *models.FeedEvent, func() error) {
	sub := s.client.Subscribe(ctx, ChannelHistory)
	events := make(chan *models.FeedEvent, 16)

	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event models.FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("bad feed payload: %v", err)
				continue
			}
			events <- &event
		}
	}()

	return events, sub.Close
}

// ---- test helpers ----

func (s *RedisService) DeleteWallet(playerID int64) error {
	return s.client.Del(s.ctx, fmt.Sprintf(KeyWallet, playerID)).Err()
}

func (s *RedisService) ClearActionLock(playerID int64) error {
	return s.client.Del(s.ctx, fmt.Sprintf(KeyActionLock, playerID)).Err()
}
