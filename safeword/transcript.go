package safeword

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/feral-kitty/fifi/delivery"
	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/state"
)

const maxHistoryLimit = 100

// TranscriptMessage is one channel message as captured in the export.
type TranscriptMessage struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at_iso"`
	Attachments []string  `json:"attachments,omitempty"`
}

type transcriptPayload struct {
	Channel struct {
		ID int64 `json:"id"`
	} `json:"channel"`
	ExportedAt time.Time           `json:"exported_at_iso"`
	Count      int                 `json:"count"`
	Messages   []TranscriptMessage `json:"messages"`
}

// ExportFilename names a transcript export for a channel at a given instant.
func ExportFilename(channelID int64, at time.Time) string {
	return "safeword_" + formatID(channelID) + "_" + at.UTC().Format("20060102T150405Z") + ".json"
}

func (e *Engine) exportTranscript(ctx context.Context, channelID int64, limit int, now time.Time) ([]byte, error) {
	if limit < 1 {
		limit = 1
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	messages, err := e.history.Recent(ctx, channelID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "read history for channel %d", channelID)
	}

	var payload transcriptPayload
	payload.Channel.ID = channelID
	payload.ExportedAt = now.UTC()
	payload.Count = len(messages)
	payload.Messages = messages

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode transcript")
	}
	return out, nil
}

func lockNotice(lm state.LockMessage, now time.Time) *delivery.Message {
	text := lm.Text
	if text == "" {
		text = "This channel has been locked."
	}
	return &delivery.Message{
		Embed: &delivery.Embed{
			Title:       "Safeword",
			Description: text,
			ImageURL:    lm.ImageURL,
			Timestamp:   now,
		},
	}
}

func releaseNotice(rm state.LockMessage, now time.Time) *delivery.Message {
	text := rm.Text
	if text == "" {
		text = "This channel has been released."
	}
	return &delivery.Message{
		Embed: &delivery.Embed{
			Title:       "Safeword Release",
			Description: text,
			ImageURL:    rm.ImageURL,
			Timestamp:   now,
		},
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
