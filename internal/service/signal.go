package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cryptoguard/cryptoguard"
)

const signalPrefix = "cryptoguard:signal:"

type SignalService struct {
	rdb *redis.Client
}

// NewSignalService publishes invalidation events over redis. A nil client
// turns publishing into a no-op and disables realtime subscriptions.
func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Enabled() bool {
	return s.rdb != nil
}

func (s *SignalService) Publish(ctx context.Context, channel string, event cryptoguard.Event) error {
	if s.rdb == nil {
		return nil
	}

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, signalPrefix+channel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime forwards events for the most recently requested channels to output.
// Each value read from input replaces the subscription set. It returns when ctx
// is done or input is closed.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- cryptoguard.Event) error {
	if s.rdb == nil {
		return fmt.Errorf("realtime requires redis")
	}

	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var current []string

	for {
		select {
		case <-ctx.Done():
			return nil

		case channels, ok := <-input:
			if !ok {
				return nil
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "unsubscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
			current = current[:0]
			for _, channel := range channels {
				key := cryptoguard.NormalizeDomain(channel)
				if key == "" {
					continue
				}
				current = append(current, signalPrefix+key)
			}
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "subscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}

		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event cryptoguard.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "malformed event", slog.String("error", err.Error()), slog.String("module", "signal"))
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
