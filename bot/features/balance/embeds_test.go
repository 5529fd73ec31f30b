package balance

import (
	"strings"
	"testing"
	"time"

	"roombot/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailyBonusEmbed(t *testing.T) {
	embed := BuildDailyBonusEmbed(&models.DailyBonusOutcome{
		Base:       decimal.NewFromInt(50),
		LevelBonus: decimal.NewFromInt(20),
		Streak:     decimal.NewFromInt(5),
		Total:      decimal.NewFromInt(75),
		XP:         20,
		NextClaim:  time.Unix(1700000000, 0),
		LevelUp:    &models.LevelUp{NewLevel: 4, LeveledUp: true},
	})

	assert.Contains(t, embed.Description, "**75.00 points**")
	assert.Contains(t, embed.Description, "**20 XP**")
	assert.Equal(t, "<t:1700000000:R>", embed.Fields[3].Value)
	require.Len(t, embed.Fields, 5)
	assert.Contains(t, embed.Fields[4].Value, "level **4**")
}

func TestBuildHistoryEmbed(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "No transactions yet.", BuildHistoryEmbed(nil).Description)
	})

	t.Run("entries", func(t *testing.T) {
		entries := []*models.BalanceHistory{
			{
				ChangeAmount:    decimal.NewFromInt(10),
				BalanceAfter:    decimal.NewFromInt(110),
				TransactionType: models.TransactionTypeCascadeReward,
				CreatedAt:       time.Unix(1700000000, 0),
			},
			{
				ChangeAmount:    decimal.NewFromInt(-25),
				BalanceAfter:    decimal.NewFromInt(100),
				TransactionType: models.TransactionTypeGiftSent,
				Reason:          "gift to bob",
				CreatedAt:       time.Unix(1700000000, 0),
			},
		}

		lines := strings.Split(BuildHistoryEmbed(entries).Description, "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "`+10.00` cascade reward → 110.00")
		assert.Contains(t, lines[1], "`-25.00` gift to bob → 100.00")
	})
}
