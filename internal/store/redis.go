package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"dispatch-monitor/sentinel/internal/config"
	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/notify"
)

// RedisStore mirrors each committed poll cycle into Redis for the serving
// layer: snapshot JSON with a short TTL, per-vehicle state hashes, a GEO set
// for map queries, and a pub/sub channel for alert events.
type RedisStore struct {
	client   *redis.Client
	stateTTL time.Duration
}

const alertChannel = "sentinel:alerts"

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return &RedisStore{client: client, stateTTL: cfg.CacheTTL()}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func (r *RedisStore) MirrorCycle(
	ctx context.Context,
	snap domain.Snapshot,
	positions map[string]*domain.VehiclePosition,
	verifications map[string]*domain.VerificationResult,
) error {
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "failed to marshal snapshot")
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, "jobs:snapshot", snapJSON, r.stateTTL)

	for id, pos := range positions {
		stateKey := fmt.Sprintf("vehicle:%s:state", id)
		state := map[string]interface{}{
			"vehicle_id":  id,
			"lat":         pos.Latitude,
			"lng":         pos.Longitude,
			"observed_at": pos.ObservedAt.Unix(),
		}
		if vr := verificationFor(verifications, id); vr != nil {
			state["job_id"] = vr.JobID
			state["verification"] = string(vr.Status)
			if vr.DistanceMiles != nil {
				state["distance_miles"] = *vr.DistanceMiles
			}
		}

		pipe.HSet(ctx, stateKey, state)
		pipe.Expire(ctx, stateKey, r.stateTTL)
		pipe.GeoAdd(ctx, "vehicles:geo", &redis.GeoLocation{
			Name:      id,
			Longitude: pos.Longitude,
			Latitude:  pos.Latitude,
		})
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "redis pipeline failed")
	}
	return nil
}

// PublishAlertEvent pushes one alert lifecycle event to the serving layer.
// Wired as a notify.Bus subscriber in main.
func (r *RedisStore) PublishAlertEvent(ctx context.Context, ev notify.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to marshal alert event")
	}
	return r.client.Publish(ctx, alertChannel, payload).Err()
}

// GetAPIKey resolves an operator API key to its principal, "" if unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("operator:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "redis get api key failed")
	}
	return val, nil
}

func verificationFor(verifications map[string]*domain.VerificationResult, vehicleID string) *domain.VerificationResult {
	for _, vr := range verifications {
		if vr.VehicleID == vehicleID {
			return vr
		}
	}
	return nil
}
