package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Narimm/OpenVPMS-sub018/internal/infra"
	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
)

const (
	groupsCacheKey = "pricing:groups"
	groupsCacheTTL = 10 * time.Minute
)

// GroupService keeps the local pricing group table in step with the external
// classification service and serves cached reads.
type GroupService interface {
	List(ctx context.Context) ([]model.PricingGroup, error)
	// Sync pulls the full group list from the classification service and
	// upserts it locally. While the service is unreachable the local table
	// keeps serving imports.
	Sync(ctx context.Context) (int, error)
}

type groupService struct {
	repo   repository.PricingGroupRepository
	client *infra.GroupsClient
	rdb    *redis.Client
}

func NewGroupService(repo repository.PricingGroupRepository, client *infra.GroupsClient, rdb *redis.Client) GroupService {
	return &groupService{repo: repo, client: client, rdb: rdb}
}

func (s *groupService) List(ctx context.Context) ([]model.PricingGroup, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, groupsCacheKey).Result(); err == nil {
			var groups []model.PricingGroup
			if err := json.Unmarshal([]byte(cached), &groups); err == nil {
				return groups, nil
			}
		}
	}

	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if payload, err := json.Marshal(groups); err == nil {
			if err := s.rdb.Set(ctx, groupsCacheKey, payload, groupsCacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("groups: cache write failed")
			}
		}
	}
	return groups, nil
}

func (s *groupService) Sync(ctx context.Context) (int, error) {
	remote, err := s.client.ListGroups(ctx)
	if err != nil {
		if errors.Is(err, infra.ErrCircuitOpen) {
			log.Warn().Msg("groups: classification service circuit open, sync skipped")
		}
		return 0, err
	}

	synced := 0
	for _, g := range remote {
		err := s.repo.Upsert(ctx, &model.PricingGroup{
			Code:       g.Code,
			Name:       g.Name,
			ExternalID: g.ExternalID,
		})
		if err != nil {
			log.Error().Err(err).Str("code", g.Code).Msg("groups: upsert failed")
			continue
		}
		synced++
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, groupsCacheKey).Err(); err != nil {
			log.Warn().Err(err).Msg("groups: cache invalidation failed")
		}
	}

	log.Info().Int("synced", synced).Int("remote", len(remote)).Msg("groups: sync finished")
	return synced, nil
}
