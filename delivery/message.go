// Package delivery sends rendered announcement payloads to Discord channels
// over the REST API.
package delivery

import "time"

// Message is a rendered payload ready for delivery to one channel.
type Message struct {
	Content string
	Embed   *Embed
}

// Embed mirrors the subset of the Discord embed object fifi produces.
type Embed struct {
	Title       string
	Description string
	ImageURL    string
	Footer      string
	Timestamp   time.Time
}

// Wire shapes for POST /channels/{id}/messages.

type wireMessage struct {
	Content         string              `json:"content,omitempty"`
	Embeds          []wireEmbed         `json:"embeds,omitempty"`
	AllowedMentions wireAllowedMentions `json:"allowed_mentions"`
}

type wireEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Image       *wireEmbedURL  `json:"image,omitempty"`
	Footer      *wireEmbedText `json:"footer,omitempty"`
}

type wireEmbedURL struct {
	URL string `json:"url"`
}

type wireEmbedText struct {
	Text string `json:"text"`
}

// Role pings only. Users and @everyone are never resolved from scheduled
// payloads.
type wireAllowedMentions struct {
	Parse []string `json:"parse"`
}

func (m *Message) toWire() wireMessage {
	w := wireMessage{
		Content:         m.Content,
		AllowedMentions: wireAllowedMentions{Parse: []string{"roles"}},
	}
	if m.Embed != nil {
		e := wireEmbed{
			Title:       m.Embed.Title,
			Description: m.Embed.Description,
		}
		if !m.Embed.Timestamp.IsZero() {
			e.Timestamp = m.Embed.Timestamp.UTC().Format(time.RFC3339)
		}
		if m.Embed.ImageURL != "" {
			e.Image = &wireEmbedURL{URL: m.Embed.ImageURL}
		}
		if m.Embed.Footer != "" {
			e.Footer = &wireEmbedText{Text: m.Embed.Footer}
		}
		w.Embeds = []wireEmbed{e}
	}
	return w
}
