package bot

import (
	"fmt"
	"time"

	"guildbot/internal/dispatch"

	"4d63.com/tz"
	"go.uber.org/zap"
)

func (b *Bot) startTasks() {
	interval := time.Duration(b.cfg.Reminders.SweepSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				b.deliverReminders()
			}
		}
	}()

	if b.cfg.Announcement.ChannelID == "" {
		return
	}
	loc, err := tz.LoadLocation(b.cfg.Announcement.Timezone)
	if err != nil {
		b.logger.Warn("announcement timezone invalid, using UTC", zap.String("timezone", b.cfg.Announcement.Timezone), zap.Error(err))
		loc = time.UTC
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			next := nextAnnouncement(b.clock.Now(), b.cfg.Announcement.Hour, loc)
			timer := time.NewTimer(next.Sub(b.clock.Now()))
			select {
			case <-b.stop:
				timer.Stop()
				return
			case <-timer.C:
				b.sendAnnouncement()
			}
		}
	}()
}

// deliverReminders posts every due reminder in the channel it was requested from.
func (b *Bot) deliverReminders() int {
	due := b.reminders.Sweep(b.clock.Now())
	for _, reminder := range due {
		content := fmt.Sprintf("<@%s> reminder: %s", reminder.UserID, reminder.Text)
		if _, err := b.gw.Send(reminder.ChannelID, dispatch.Reply{Content: content}); err != nil {
			b.logger.Warn("reminder send failed",
				zap.String("user_id", reminder.UserID),
				zap.String("channel_id", reminder.ChannelID),
				zap.Error(err),
			)
		}
	}
	return len(due)
}

func (b *Bot) sendAnnouncement() {
	if _, err := b.gw.Send(b.cfg.Announcement.ChannelID, dispatch.Reply{Content: b.cfg.Announcement.Message}); err != nil {
		b.logger.Warn("announcement send failed", zap.String("channel_id", b.cfg.Announcement.ChannelID), zap.Error(err))
		return
	}
	b.logger.Info("daily announcement sent", zap.String("channel_id", b.cfg.Announcement.ChannelID))
}

// nextAnnouncement returns the first hour:00 in loc strictly after now.
func nextAnnouncement(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}
