package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/feral-kitty/fifi/delivery"
)

const defaultEmbedTitle = "Announcement"

// RenderMessage materializes a job's payload for delivery. Rendering happens
// fresh at each dispatch; nothing is cached between fires.
func RenderMessage(job *Job, now time.Time) *delivery.Message {
	title := job.Embed.Title
	if title == "" {
		title = defaultEmbedTitle
	}

	description := job.Embed.Description
	if len(job.Attachments) > 0 {
		extra := strings.Join(job.Attachments, "\n")
		if description != "" {
			description += "\n\n" + extra
		} else {
			description = extra
		}
	}

	mentions := make([]string, 0, len(job.RoleIDs))
	for _, rid := range job.RoleIDs {
		mentions = append(mentions, fmt.Sprintf("<@&%d>", rid))
	}

	return &delivery.Message{
		Content: strings.Join(mentions, " "),
		Embed: &delivery.Embed{
			Title:       title,
			Description: description,
			ImageURL:    job.Embed.ImageURL,
			Footer:      job.Embed.Footer,
			Timestamp:   now,
		},
	}
}
