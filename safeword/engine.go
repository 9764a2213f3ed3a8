// Package safeword implements the channel-lock incident flow: a trigger
// message locks a channel, pings responders, and exports a transcript; a
// release restores the channel to its pre-lock state.
package safeword

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feral-kitty/fifi/delivery"
	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/state"
)

// Sentinel outcomes for trigger/release attempts. Callers use errors.Is to
// decide what, if anything, to tell the invoking member.
var (
	ErrDisabled   = errors.New("safeword disabled")
	ErrBlocked    = errors.New("member role is blocked from triggering")
	ErrCooldown   = errors.New("channel is in trigger cooldown")
	ErrNotLocked  = errors.New("channel is not locked")
	ErrUnapproved = errors.New("member is not whitelisted to release")
)

// Snapshot captures channel settings before a lock so release can restore
// them exactly.
type Snapshot struct {
	PriorSendEveryone *bool
	PriorSlowmode     int
}

// Locker applies and reverts the channel lock through the host's Discord
// client.
type Locker interface {
	Lock(ctx context.Context, channelID int64, whitelist []string) (Snapshot, error)
	Restore(ctx context.Context, channelID int64, snap Snapshot) error
}

// Messenger posts incident messages into channels.
type Messenger interface {
	Send(ctx context.Context, channelID int64, msg *delivery.Message) error
}

// History reads recent channel messages for the transcript export.
type History interface {
	Recent(ctx context.Context, channelID int64, limit int) ([]TranscriptMessage, error)
}

// Member is the invoking member as seen by the engine; role names are
// already resolved by the host.
type Member struct {
	ID        int64
	Name      string
	RoleNames []string
}

// Incident records one completed trigger.
type Incident struct {
	ID          string
	ChannelID   int64
	TriggeredBy int64
	At          time.Time
	Transcript  []byte
	LockError   error // non-nil when the lock itself failed; the incident still stands
}

// Engine is the per-guild safeword state machine. Config lives in the state
// document; lock snapshots and cooldowns are process-local.
type Engine struct {
	mu          sync.Mutex
	store       *state.Store
	locker      Locker
	messenger   Messenger
	history     History
	logger      *zap.SugaredLogger
	clock       func() time.Time
	locks       map[int64]Snapshot
	lastTrigger map[int64]time.Time
}

// NewEngine wires the engine to its collaborators.
func NewEngine(store *state.Store, locker Locker, messenger Messenger, history History, log *zap.SugaredLogger) *Engine {
	return &Engine{
		store:       store,
		locker:      locker,
		messenger:   messenger,
		history:     history,
		logger:      log,
		clock:       time.Now,
		locks:       make(map[int64]Snapshot),
		lastTrigger: make(map[int64]time.Time),
	}
}

// Matches reports whether content is the trigger or release phrase.
func (e *Engine) Matches(content string) (trigger, release bool) {
	cfg := e.store.Safeword()
	content = strings.TrimSpace(content)
	return content == strings.TrimSpace(cfg.Trigger), content == strings.TrimSpace(cfg.ReleaseTrigger)
}

// Trigger runs the full incident flow for one channel: authorization,
// cooldown, responder ping, lock message, transcript export to the log
// channel, then the permission lock itself. Failures after authorization are
// best-effort; the lock error is carried on the incident rather than
// aborting it.
func (e *Engine) Trigger(ctx context.Context, channelID int64, member Member) (*Incident, error) {
	cfg := e.store.Safeword()
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if hasAnyRole(member, cfg.BlockedRoles) {
		return nil, errors.Wrapf(ErrBlocked, "member %d", member.ID)
	}

	now := e.clock()
	e.mu.Lock()
	if cfg.CooldownSeconds > 0 {
		if last, ok := e.lastTrigger[channelID]; ok && now.Sub(last) < time.Duration(cfg.CooldownSeconds)*time.Second {
			e.mu.Unlock()
			return nil, errors.Wrapf(ErrCooldown, "channel %d", channelID)
		}
		e.lastTrigger[channelID] = now
	}
	e.mu.Unlock()

	incident := &Incident{
		ID:          uuid.NewString(),
		ChannelID:   channelID,
		TriggeredBy: member.ID,
		At:          now.UTC(),
	}

	if ping := responderPing(cfg.RolesToPing); ping != "" {
		if err := e.messenger.Send(ctx, channelID, &delivery.Message{Content: ping}); err != nil {
			e.logger.Warnw("Responder ping failed", "channel_id", channelID, "error", err)
		}
	}

	if err := e.messenger.Send(ctx, channelID, lockNotice(cfg.LockMessage, now)); err != nil {
		e.logger.Warnw("Lock notice failed", "channel_id", channelID, "error", err)
	}

	if cfg.LogChannelID > 0 {
		transcript, err := e.exportTranscript(ctx, channelID, cfg.HistoryLimit, now)
		if err != nil {
			e.logger.Warnw("Transcript export failed", "channel_id", channelID, "error", err)
		} else {
			incident.Transcript = transcript
			e.sendIncidentLog(ctx, cfg.LogChannelID, incident, member)
		}
	}

	snap, err := e.locker.Lock(ctx, channelID, cfg.RolesWhitelist)
	if err != nil {
		incident.LockError = errors.Wrapf(err, "lock channel %d", channelID)
		e.logger.Errorw("Channel lock failed",
			"incident_id", incident.ID,
			"channel_id", channelID,
			"error", err)
	} else {
		e.mu.Lock()
		e.locks[channelID] = snap
		e.mu.Unlock()
	}

	e.logger.Infow("Safeword triggered",
		"incident_id", incident.ID,
		"channel_id", channelID,
		"member_id", member.ID)
	return incident, nil
}

// Release restores a locked channel. Only whitelisted members may release.
func (e *Engine) Release(ctx context.Context, channelID int64, member Member) error {
	cfg := e.store.Safeword()
	whitelist := cfg.RolesWhitelist
	if len(whitelist) == 0 {
		whitelist = []string{"Staff"}
	}
	if !hasAnyRole(member, whitelist) {
		return errors.Wrapf(ErrUnapproved, "member %d", member.ID)
	}

	e.mu.Lock()
	snap, locked := e.locks[channelID]
	delete(e.locks, channelID)
	e.mu.Unlock()
	if !locked {
		return errors.Wrapf(ErrNotLocked, "channel %d", channelID)
	}

	if err := e.locker.Restore(ctx, channelID, snap); err != nil {
		return errors.Wrapf(err, "restore channel %d", channelID)
	}

	now := e.clock()
	if err := e.messenger.Send(ctx, channelID, releaseNotice(cfg.ReleaseMessage, now)); err != nil {
		e.logger.Warnw("Release notice failed", "channel_id", channelID, "error", err)
	}
	if cfg.LogChannelID > 0 {
		e.sendReleaseLog(ctx, cfg.LogChannelID, channelID, member, now)
	}

	e.logger.Infow("Safeword released", "channel_id", channelID, "member_id", member.ID)
	return nil
}

// Locked reports whether the engine holds a lock snapshot for the channel.
func (e *Engine) Locked(channelID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.locks[channelID]
	return ok
}

func (e *Engine) sendIncidentLog(ctx context.Context, logChannelID int64, incident *Incident, member Member) {
	msg := &delivery.Message{
		Content: "Transcript attached.",
		Embed: &delivery.Embed{
			Title:       "Safeword Triggered",
			Description: channelMention(incident.ChannelID),
			Footer:      "Invoked by " + member.Name,
			Timestamp:   incident.At,
		},
	}
	if err := e.messenger.Send(ctx, logChannelID, msg); err != nil {
		e.logger.Warnw("Incident log failed", "channel_id", logChannelID, "error", err)
	}
}

func (e *Engine) sendReleaseLog(ctx context.Context, logChannelID, channelID int64, member Member, now time.Time) {
	msg := &delivery.Message{
		Embed: &delivery.Embed{
			Title:       "Safeword Release",
			Description: channelMention(channelID),
			Footer:      "Released by " + member.Name,
			Timestamp:   now,
		},
	}
	if err := e.messenger.Send(ctx, logChannelID, msg); err != nil {
		e.logger.Warnw("Release log failed", "channel_id", logChannelID, "error", err)
	}
}

func hasAnyRole(member Member, roles []string) bool {
	if len(roles) == 0 {
		return false
	}
	have := make(map[string]bool, len(member.RoleNames))
	for _, r := range member.RoleNames {
		have[normalize(r)] = true
	}
	for _, r := range roles {
		if have[normalize(r)] {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func responderPing(roles []string) string {
	mentions := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r != "" {
			mentions = append(mentions, "@"+r)
		}
	}
	return strings.Join(mentions, " ")
}

func channelMention(channelID int64) string {
	return "Channel: <#" + formatID(channelID) + ">"
}
