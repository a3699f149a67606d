package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"veilchat/internal/app/store"
	"veilchat/internal/pkg/logx"
)

// Sweeper removes vanished messages: those written in a vanish-mode
// conversation whose timer has elapsed. It also clears a conversation's
// denormalized preview when the previewed message vanishes, so the list
// never leaks content the log no longer holds.
type Sweeper struct {
	store    store.Store
	interval time.Duration
	logger   zerolog.Logger

	// now supplies the expiry clock, swappable in tests.
	now func() time.Time
}

// NewSweeper creates a Sweeper running every interval.
func NewSweeper(s store.Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    s,
		interval: interval,
		logger:   logx.Logger().With().Str("component", "VanishSweeper").Logger(),
		now:      time.Now,
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info().Dur("interval", sw.interval).Msg("Vanish sweeper started.")

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info().Msg("Vanish sweeper stopped.")
			return
		case <-ticker.C:
			if n, err := sw.SweepOnce(ctx); err != nil {
				sw.logger.Error().Err(err).Msg("Sweep failed.")
			} else if n > 0 {
				sw.logger.Info().Int("removed", n).Msg("Vanished messages removed.")
			}
		}
	}
}

// SweepOnce deletes every expired vanish message and returns how many were
// removed. Failures on individual messages abort the pass; the next tick
// picks up where this one left off.
func (sw *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	docs, err := sw.store.Query(ctx, MessagesCollection, store.Query{
		Filters: []store.Filter{store.Eq("vanishes", true)},
	})
	if err != nil {
		return 0, err
	}

	cutoff := sw.now()
	removed := 0

	for _, doc := range docs {
		vanishAt := store.AsTime(doc.Fields["vanishAt"])
		if vanishAt.IsZero() || vanishAt.After(cutoff) {
			continue
		}

		chatID := store.AsString(doc.Fields["chatId"])

		if err := sw.store.Delete(ctx, MessagesCollection, doc.ID); err != nil {
			return removed, err
		}
		removed++

		sw.clearPreviewIfVanished(ctx, chatID, doc.ID)
	}

	return removed, nil
}

// clearPreviewIfVanished blanks the conversation preview when it references
// the message that just vanished. Best-effort: a failure here only delays the
// cleanup until the preview is overwritten by the next send.
func (sw *Sweeper) clearPreviewIfVanished(ctx context.Context, chatID, msgID string) {
	doc, err := sw.store.Get(ctx, ChatsCollection, chatID)
	if err != nil {
		return
	}

	lm := store.AsFields(doc.Fields["lastMessage"])
	if lm == nil || store.AsString(lm["id"]) != msgID {
		return
	}

	err = sw.store.Update(ctx, ChatsCollection, chatID, store.Fields{
		"lastMessage": store.Fields{
			"id":        msgID,
			"senderId":  store.AsString(lm["senderId"]),
			"content":   "",
			"timestamp": store.AsString(lm["timestamp"]),
		},
	})
	if err != nil {
		sw.logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to blank vanished preview.")
	}
}
