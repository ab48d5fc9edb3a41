package bot

import (
	"errors"
	"sync"
	"testing"
	"time"

	"colorgame/broadcast"
	"colorgame/models"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	mu     sync.Mutex
	embeds []*discordgo.MessageEmbed
	err    error
}

func (f *fakeMessenger) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, embed)
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeMessenger) sent() []*discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageEmbed(nil), f.embeds...)
}

func testRound() *models.Round {
	start := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	return &models.Round{ID: "20240309600", StartTime: start, EndTime: start.Add(3 * time.Minute), IsActive: true}
}

func TestAnnouncer_PostsTransitions(t *testing.T) {
	messenger := &fakeMessenger{}
	announcer := NewAnnouncer(messenger, "chan-1", "30s", 4)

	round := testRound()
	hub := broadcast.NewHub(func() *models.Round { return round })
	hub.Attach(announcer)
	hub.Broadcast(models.MessagePeriodStart, round)

	settled := *round
	settled.ApplyOutcome(models.Outcome{
		Number: 5,
		Colors: models.ColorSet{models.ColorViolet, models.ColorGreen},
		Price:  decimal.RequireFromString("1234.5"),
	}, round.EndTime)
	hub.Broadcast(models.MessagePeriodEnd, &settled)

	require.Eventually(t, func() bool { return len(messenger.sent()) == 2 }, time.Second, 5*time.Millisecond)

	embeds := messenger.sent()
	assert.Contains(t, embeds[0].Title, "20240309600 is open")
	assert.Contains(t, embeds[0].Description, "30s")

	end := embeds[1]
	assert.Contains(t, end.Title, "result")
	assert.Equal(t, ColorViolet, end.Color)
	require.Len(t, end.Fields, 3)
	assert.Equal(t, "**5**", end.Fields[0].Value)
	assert.Equal(t, "🟣 violet + 🟢 green", end.Fields[1].Value)
	assert.Equal(t, "1,234.50", end.Fields[2].Value)

	hub.Detach(announcer)
	select {
	case <-announcer.Done():
	case <-time.After(time.Second):
		t.Fatal("announcer did not stop")
	}
	assert.Len(t, messenger.sent(), 2, "gameState is never posted")
}

func TestAnnouncer_SendFailureKeepsRunning(t *testing.T) {
	messenger := &fakeMessenger{err: errors.New("rate limited")}
	announcer := NewAnnouncer(messenger, "chan-1", "", 4)
	defer announcer.Close()

	round := testRound()
	announcer.Deliver(broadcast.Message{Type: models.MessagePeriodStart, Period: round})
	announcer.Deliver(broadcast.Message{Type: models.MessagePeriodStart, Period: round})

	require.Eventually(t, func() bool { return len(messenger.sent()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestEmbedColor(t *testing.T) {
	assert.Equal(t, ColorDanger, embedColor(models.ColorSet{models.ColorRed}))
	assert.Equal(t, ColorSuccess, embedColor(models.ColorSet{models.ColorGreen}))
	assert.Equal(t, ColorViolet, embedColor(models.ColorSet{models.ColorViolet, models.ColorRed}))
}

func TestBuildPeriodEndEmbed_Unsettled(t *testing.T) {
	embed := buildPeriodEndEmbed(testRound())
	assert.Equal(t, "Period 20240309600 closed", embed.Title)
	assert.Empty(t, embed.Fields)
}
