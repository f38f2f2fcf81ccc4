package scheduling

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/cache"
)

// templateCache keeps weekly templates for the read endpoint only. Booking
// checks always read the store inside their transaction.
//
// Each professional has a generation counter that every replace bumps after
// commit. Entries are stamped with the generation read before the store
// read, and an entry whose stamp is no longer current is a miss. A reader
// that loaded the old template just before a replace therefore cannot
// publish it over the new one.
type templateCache struct {
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

type cachedTemplate struct {
	Generation int64         `json:"generation"`
	Blocks     []WeeklyBlock `json:"blocks"`
}

func templateKey(professionalID uuid.UUID) string {
	return "availability:weekly:" + professionalID.String()
}

func generationKey(professionalID uuid.UUID) string {
	return "availability:weekly-gen:" + professionalID.String()
}

func (c templateCache) enabled() bool {
	return c.store != nil && c.ttl > 0
}

// generation returns the current counter; ok is false when it cannot be read.
func (c templateCache) generation(ctx context.Context, professionalID uuid.UUID) (int64, bool) {
	raw, found, err := c.store.Get(ctx, generationKey(professionalID))
	if err != nil {
		c.logger.Warn().Err(err).Str("professional_id", professionalID.String()).Msg("template cache generation read failed")
		return 0, false
	}
	if !found {
		return 0, true
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		c.logger.Warn().Err(err).Str("professional_id", professionalID.String()).Msg("template cache generation corrupt")
		return 0, false
	}
	return n, true
}

// lookup returns the cached template when it is current. On a miss it
// returns the generation to hand to put, and usable=false when nothing may
// be stored. Every cache failure counts as a miss.
func (c templateCache) lookup(ctx context.Context, professionalID uuid.UUID) (blocks []WeeklyBlock, hit bool, gen int64, usable bool) {
	if !c.enabled() {
		return nil, false, 0, false
	}
	gen, usable = c.generation(ctx, professionalID)
	if !usable {
		return nil, false, 0, false
	}

	raw, found, err := c.store.Get(ctx, templateKey(professionalID))
	if err != nil {
		c.logger.Warn().Err(err).Str("professional_id", professionalID.String()).Msg("template cache read failed")
		return nil, false, gen, true
	}
	if !found {
		return nil, false, gen, true
	}
	var entry cachedTemplate
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str("professional_id", professionalID.String()).Msg("template cache entry corrupt")
		return nil, false, gen, true
	}
	if entry.Generation != gen {
		return nil, false, gen, true
	}
	return entry.Blocks, true, gen, true
}

func (c templateCache) put(ctx context.Context, professionalID uuid.UUID, gen int64, blocks []WeeklyBlock) {
	raw, err := json.Marshal(cachedTemplate{Generation: gen, Blocks: blocks})
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, templateKey(professionalID), raw, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("professional_id", professionalID.String()).Msg("template cache write failed")
	}
}

// invalidate bumps the generation, which retires the current entry and any
// entry a concurrent reader is about to write. If the bump fails the old
// entry is deleted, leaving only that race open until the TTL expires.
func (c templateCache) invalidate(ctx context.Context, professionalID uuid.UUID) {
	if c.store == nil {
		return
	}
	if _, err := c.store.Incr(ctx, generationKey(professionalID)); err != nil {
		c.logger.Warn().Err(err).Str("professional_id", professionalID.String()).Msg("template cache generation bump failed")
	}
	if err := c.store.Delete(ctx, templateKey(professionalID)); err != nil {
		c.logger.Warn().Err(err).Str("professional_id", professionalID.String()).Msg("template cache invalidation failed")
	}
}
