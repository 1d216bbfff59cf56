package messages

import (
	"fmt"
	"strings"

	"github.com/korjavin/gamenight/pkg/datetime"
	"github.com/korjavin/gamenight/pkg/models"
	"github.com/korjavin/gamenight/pkg/session"
	"github.com/korjavin/gamenight/pkg/storage"
)

// markdownReplacer escapes every character Telegram MarkdownV2 reserves.
var markdownReplacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// EscapeMarkdown escapes user-supplied text for Telegram MarkdownV2.
func EscapeMarkdown(text string) string {
	return markdownReplacer.Replace(text)
}

// StatusEmoji returns the marker shown next to a session title.
func StatusEmoji(status models.SessionStatus) string {
	switch status {
	case models.SessionStatusActive:
		return "🟢"
	case models.SessionStatusConfirmed:
		return "✅"
	case models.SessionStatusCancelled:
		return "❌"
	default:
		return "⚪"
	}
}

// StatusLabel returns the emoji plus a readable name for a status.
func StatusLabel(status models.SessionStatus) string {
	switch status {
	case models.SessionStatusActive:
		return "🟢 Active"
	case models.SessionStatusConfirmed:
		return "✅ Confirmed"
	case models.SessionStatusCancelled:
		return "❌ Cancelled"
	default:
		return "⚪ Unknown"
	}
}

// FormatDuration renders a session length in whole hours once it reaches one.
func FormatDuration(minutes int) string {
	if minutes >= 60 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dmin", minutes)
}

// ParticipantList renders confirmed usernames, truncating long lists.
func ParticipantList(names []string) string {
	switch {
	case len(names) == 0:
		return "No participants confirmed yet"
	case len(names) <= 5:
		return strings.Join(names, ", ")
	default:
		return fmt.Sprintf("%s and %d others", strings.Join(names[:3], ", "), len(names)-3)
	}
}

// SessionCard renders the voting message posted for one session.
func SessionCard(overview session.Overview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 *%s*\n\n", EscapeMarkdown(overview.Session.Title))
	b.WriteString("Select your availability for each option:\n")
	writeOptionLines(&b, "", overview.Options)
	if overview.Session.Deadline != nil {
		fmt.Fprintf(&b, "\n⏰ Deadline: %s\n", EscapeMarkdown(datetime.Format(*overview.Session.Deadline)))
	}
	fmt.Fprintf(&b, "\n🔗 Session ID: `%s`", overview.Session.ID)
	return b.String()
}

// SessionList renders the reply for a list command.
func SessionList(overviews []session.Overview) string {
	if len(overviews) == 0 {
		return "📋 This group has no active or confirmed sessions\\.\n\n" +
			"💡 Create one with:\n`/schedule \"Game Night\" \"Friday 19:00, Saturday 14:30\"`"
	}

	var b strings.Builder
	b.WriteString("📋 *Active Sessions*\n\n")
	for _, overview := range overviews {
		fmt.Fprintf(&b, "%s *%s*\n📧 ID: `%s`\n",
			StatusEmoji(overview.Session.Status),
			EscapeMarkdown(overview.Session.Title),
			overview.Session.ID)
		if overview.Session.Deadline != nil {
			fmt.Fprintf(&b, "⏰ Deadline: %s\n", EscapeMarkdown(datetime.Format(*overview.Session.Deadline)))
		}
		b.WriteString("📅 *Options:*\n")
		writeOptionLines(&b, "  ", overview.Options)
		b.WriteString("\n")
	}
	b.WriteString("💡 *Commands:*\n")
	b.WriteString("• `/confirm <session_id>` \\- Confirm session\n")
	b.WriteString("• `/cancel <session_id>` \\- Cancel session\n")
	b.WriteString("• `/deadline <session_id> <time>` \\- Set deadline")
	return b.String()
}

func writeOptionLines(b *strings.Builder, indent string, tallies []session.OptionTally) {
	for i, tally := range tallies {
		marker := ""
		if tally.Option.Confirmed {
			marker = " ✅"
		}
		fmt.Fprintf(b, "%s%d\\. %s \\(✅ %d • ❌ %d • ❓ %d\\)%s\n",
			indent, i+1,
			EscapeMarkdown(datetime.Format(tally.Option.Datetime)),
			tally.Yes, tally.No, tally.Maybe, marker)
	}
}

// ConfirmAnnouncement renders the reply for a confirmed session.
func ConfirmAnnouncement(outcome session.ConfirmOutcome) string {
	return fmt.Sprintf("✅ *Session Confirmed\\!*\n\n📅 *%s*\n🕐 %s\n👥 %d players confirmed",
		EscapeMarkdown(outcome.Session.Title),
		EscapeMarkdown(datetime.Format(outcome.Winner.Datetime)),
		outcome.YesVotes)
}

// CancelAnnouncement renders the reply for a cancelled session.
func CancelAnnouncement(sess models.Session) string {
	return fmt.Sprintf("❌ *Session Cancelled*\n\n📅 *%s* has been cancelled\\.",
		EscapeMarkdown(sess.Title))
}

// DeadlineAnnouncement renders the reply after a deadline was stored.
func DeadlineAnnouncement(sess models.Session) string {
	due := "not set"
	if sess.Deadline != nil {
		due = datetime.Format(*sess.Deadline)
	}
	return fmt.Sprintf("⏰ *Deadline Set*\n\n📅 *%s*\n🕐 Responses due by: %s",
		EscapeMarkdown(sess.Title),
		EscapeMarkdown(due))
}

// Reminder renders one pre-event reminder for a confirmed session.
func Reminder(header string, sess models.Session, option models.SessionOption, participants []string) string {
	return fmt.Sprintf("📅 *%s*\n\n🎲 *%s*\n\n📅 *When:* %s\n⏱️ *Duration:* %s\n👥 *Participants:* %s\n\n🔗 Session ID: `%s`",
		EscapeMarkdown(header),
		EscapeMarkdown(sess.Title),
		EscapeMarkdown(datetime.Format(option.Datetime)),
		FormatDuration(option.DurationMinutes),
		EscapeMarkdown(ParticipantList(participants)),
		sess.ID)
}

var medals = []string{"🥇", "🥈", "🥉", "🏅", "🏅"}

// StatsReport renders the reply for a stats command.
func StatsReport(stats storage.GroupStats) string {
	if stats.TotalSessions == 0 {
		return "📊 No statistics yet\\. Create your first session with `/schedule`\\!"
	}

	var b strings.Builder
	b.WriteString("📊 *Group Statistics*\n\n")
	fmt.Fprintf(&b, "🎲 *Sessions Overview:*\n• Total Sessions: %d\n• Active: %d\n• Confirmed: %d\n• Cancelled: %d\n\n",
		stats.TotalSessions, stats.ActiveSessions, stats.ConfirmedSessions, stats.CancelledSessions)
	fmt.Fprintf(&b, "📝 *Response Statistics:*\n• Total Responses: %d\n• ✅ Yes: %d \\(%s%%\\)\n• ❌ No: %d \\(%s%%\\)\n• ❓ Maybe: %d \\(%s%%\\)\n\n",
		stats.TotalResponses,
		stats.YesResponses, percent(stats.YesResponses, stats.TotalResponses),
		stats.NoResponses, percent(stats.NoResponses, stats.TotalResponses),
		stats.MaybeResponses, percent(stats.MaybeResponses, stats.TotalResponses))

	if len(stats.TopParticipants) > 0 {
		b.WriteString("🏆 *Top Participants:*\n")
		for i, participant := range stats.TopParticipants {
			name := participant.Username
			if name == "" {
				name = "Anonymous"
			}
			fmt.Fprintf(&b, "  %s %s \\(%d responses\\)\n",
				medals[min(i, len(medals)-1)], EscapeMarkdown(name), participant.ResponseCount)
		}
		b.WriteString("\n")
	}

	if stats.MostRecentSession != nil {
		fmt.Fprintf(&b, "🕐 *Recent Activity:*\n• Last Session: %s\n• Created: %s\n• Status: %s\n\n",
			EscapeMarkdown(stats.MostRecentSession.Title),
			EscapeMarkdown(datetime.Format(stats.MostRecentSession.CreatedAt)),
			StatusLabel(stats.MostRecentSession.Status))
	}

	b.WriteString("💡 Use `/settings` for group configuration")
	return b.String()
}

// SettingsView renders the reply for a settings command.
func SettingsView(group models.Group, stats storage.GroupStats) string {
	var b strings.Builder
	b.WriteString("⚙️ *Group Settings*\n\n")
	fmt.Fprintf(&b, "📊 *Group Statistics:*\n• Total Sessions: %d\n• Active: %d\n• Confirmed: %d\n• Total Responses: %d\n\n",
		stats.TotalSessions, stats.ActiveSessions, stats.ConfirmedSessions, stats.TotalResponses)
	fmt.Fprintf(&b, "🔧 *Current Settings:*\n• Timezone: %s\n• Default Duration: %s\n• Reminder Lead: %dh\n\n",
		EscapeMarkdown(group.Timezone), FormatDuration(group.DefaultDuration), group.ReminderHours)
	b.WriteString("💡 *Tips:*\n")
	b.WriteString("• Use `/list` to see all active sessions\n")
	b.WriteString("• Session creators can `/confirm` and `/cancel`\n")
	b.WriteString("• Set voting deadlines with `/deadline <session_id> <time>`")
	return b.String()
}

// HelpText lists the commands the bot understands.
func HelpText() string {
	var b strings.Builder
	b.WriteString("🎲 *GameNight Scheduler*\n\n")
	b.WriteString("*Commands:*\n")
	b.WriteString("• `/schedule \"Title\" \"Friday 19:00, Saturday 14:30\"` \\- Propose session times\n")
	b.WriteString("• `/confirm <session_id>` \\- Lock in the most popular time\n")
	b.WriteString("• `/cancel <session_id>` \\- Call a session off\n")
	b.WriteString("• `/deadline <session_id> <time>` \\- Set a voting deadline\n")
	b.WriteString("• `/list` \\- Show active and confirmed sessions\n")
	b.WriteString("• `/stats` \\- Group voting statistics\n")
	b.WriteString("• `/settings` \\- Group configuration\n\n")
	b.WriteString("Vote with the ✅ ❌ ❓ buttons under each session card\\.")
	return b.String()
}

func percent(part, total int) string {
	if total == 0 {
		return "0\\.0"
	}
	value := float64(part) / float64(total) * 100
	return EscapeMarkdown(fmt.Sprintf("%.1f", value))
}
