package service

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Scheduler runs fn once after delay. Scheduled actions are fire-and-forget and
// are not tied to any ticket's lifecycle.
type Scheduler func(delay time.Duration, fn func())

// AfterFunc is the production Scheduler.
func AfterFunc(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}

var invalidChannelChars = regexp.MustCompile(`[^a-z0-9-]`)

// SanitizeChannelName lower-cases name, replaces anything outside [a-z0-9-]
// with a dash and truncates to the platform ceiling.
func SanitizeChannelName(name string) string {
	safe := invalidChannelChars.ReplaceAllString(strings.ToLower(name), "-")
	return truncateName(safe)
}

func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= gateway.MaxChannelNameLength {
		return name
	}
	return string([]rune(name)[:gateway.MaxChannelNameLength])
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

// bestEffort logs and swallows a cosmetic side-effect failure that follows an
// already persisted state change.
func bestEffort(logger *zap.Logger, op string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	logger.Warn("best-effort "+op+" failed", append(fields, zap.Error(err))...)
}

// observe records one operation outcome. Recoverable domain errors count as
// rejections; storage and unclassified errors as failures.
func observe(metrics *observability.Metrics, op string, start time.Time, err error) {
	outcome := observability.OutcomeOK
	switch {
	case err == nil:
	case apperrors.IsFatal(err):
		outcome = observability.OutcomeFailed
	default:
		outcome = observability.OutcomeRejected
	}
	metrics.RecordOperation(op, outcome, time.Since(start))
}

func userActor(id string) events.Actor {
	return events.Actor{Type: events.ActorUser, ID: id}
}

func staffActor(id string) events.Actor {
	return events.Actor{Type: events.ActorStaff, ID: id}
}

func systemActor() events.Actor {
	return events.Actor{Type: events.ActorSystem}
}

func roleMentions(roleIDs []string) string {
	mentions := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		mentions = append(mentions, "<@&"+id+">")
	}
	return strings.Join(mentions, " ")
}

func userMention(id string) string {
	return "<@" + id + ">"
}

func ptrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
