package platforms

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 2000

type DiscordConfig struct {
	BotToken   string
	ChannelID  string
	Sleep      time.Duration
	HTTPClient *http.Client
}

// DiscordPlatform mirrors operator alerts into a Discord channel over the REST API.
type DiscordPlatform struct {
	botToken   string
	channelID  string
	sleep      time.Duration
	httpClient *http.Client
	session    *discordgo.Session
	mu         sync.Mutex
	lastSent   time.Time
}

func NewDiscordPlatform(cfg DiscordConfig) (*DiscordPlatform, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("discord platform: bot_token is required")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord platform: channel_id is required")
	}
	if cfg.Sleep == 0 {
		cfg.Sleep = 1 * time.Second
	}

	return &DiscordPlatform{
		botToken:   cfg.BotToken,
		channelID:  cfg.ChannelID,
		sleep:      cfg.Sleep,
		httpClient: cfg.HTTPClient,
	}, nil
}

func (p *DiscordPlatform) Initialize(ctx context.Context) error {
	session, err := discordgo.New("Bot " + p.botToken)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	if p.httpClient != nil {
		session.Client = p.httpClient
	}

	p.session = session
	return nil
}

func (p *DiscordPlatform) Name() string {
	return "discord"
}

// Alert sends text to the configured channel, spacing consecutive messages by the platform sleep.
func (p *DiscordPlatform) Alert(ctx context.Context, text string) error {
	if p.session == nil {
		return fmt.Errorf("discord platform not initialized")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if wait := p.sleep - time.Since(p.lastSent); !p.lastSent.IsZero() && wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	if len(text) > discordMessageLimit {
		text = text[:discordMessageLimit]
	}

	_, err := p.session.ChannelMessageSend(p.channelID, text, discordgo.WithContext(ctx))
	p.lastSent = time.Now()
	if err != nil {
		return fmt.Errorf("discord send failed: %w", err)
	}
	return nil
}

func (p *DiscordPlatform) Close(ctx context.Context) error {
	if p.session != nil {
		return p.session.Close()
	}
	return nil
}
