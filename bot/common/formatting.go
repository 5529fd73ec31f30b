package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Embed colors
const (
	ColorPrimary = 0xff69b4
	ColorSuccess = 0x2ecc71
	ColorDanger  = 0xe74c3c
	ColorNeutral = 0x95a5a6
)

// FormatPoints formats an amount with two decimals and thousand separators
func FormatPoints(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	whole, fraction, _ := strings.Cut(fixed, ".")
	n := len(whole)
	if n <= 3 {
		return sign + whole + "." + fraction
	}

	var result strings.Builder
	result.WriteString(sign)
	for i, digit := range whole {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	result.WriteString(".")
	result.WriteString(fraction)
	return result.String()
}

// FormatDuration renders a wait time as "5h 3m", "3m 20s" or "20s"
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays in user's local timezone
// Format types: "t" = short time, "T" = long time, "d" = short date, "D" = long date,
// "f" = short date/time, "F" = long date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// Mention renders a user mention
func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// RankLabel returns a medal for the top three and "#n" otherwise
func RankLabel(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("#%d", rank)
	}
}
