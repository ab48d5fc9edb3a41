package bot

import (
	"fmt"

	"colorgame/broadcast"
	"colorgame/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token     string
	ChannelID string
	// LockWindow is shown in the period start announcement
	LockWindow string
	// BufferSize bounds the announcements waiting to be sent
	BufferSize int
}

// ChannelMessenger is the part of the Discord session the announcer needs
type ChannelMessenger interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot announces round lifecycle transitions in a Discord channel
type Bot struct {
	config  Config
	session *discordgo.Session
	*Announcer
}

// New opens a Discord session and starts the announcer
func New(config Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	log.WithField("channel_id", config.ChannelID).Info("Discord announcer connected")

	return &Bot{
		config:    config,
		session:   dg,
		Announcer: NewAnnouncer(dg, config.ChannelID, config.LockWindow, config.BufferSize),
	}, nil
}

// Close stops announcing and closes the Discord session
func (b *Bot) Close() error {
	b.Announcer.Close()
	<-b.Announcer.Done()
	return b.session.Close()
}

// Announcer is a hub sink that posts periodStart and periodEnd to a channel
type Announcer struct {
	*broadcast.Outbox
	messenger  ChannelMessenger
	channelID  string
	lockWindow string
	done       chan struct{}
}

// NewAnnouncer creates an announcer and starts its send loop
func NewAnnouncer(messenger ChannelMessenger, channelID, lockWindow string, bufferSize int) *Announcer {
	a := &Announcer{
		Outbox:     broadcast.NewOutbox(bufferSize),
		messenger:  messenger,
		channelID:  channelID,
		lockWindow: lockWindow,
		done:       make(chan struct{}),
	}
	go a.run()
	return a
}

// ID identifies the sink in hub logs
func (a *Announcer) ID() string {
	return "discord-announcer"
}

// Done is closed once the send loop has drained after Close
func (a *Announcer) Done() <-chan struct{} {
	return a.done
}

func (a *Announcer) run() {
	defer close(a.done)

	for msg := range a.Messages() {
		if msg.Period == nil {
			continue
		}

		var embed *discordgo.MessageEmbed
		switch msg.Type {
		case models.MessagePeriodStart:
			embed = buildPeriodStartEmbed(msg.Period, a.lockWindow)
		case models.MessagePeriodEnd:
			embed = buildPeriodEndEmbed(msg.Period)
		default:
			continue
		}

		if _, err := a.messenger.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
			log.WithFields(log.Fields{
				"period_id": msg.Period.ID,
				"type":      msg.Type,
				"error":     err,
			}).Error("Failed to post round announcement")
		}
	}
}
