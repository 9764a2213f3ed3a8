// Package roster records member join/leave/ban events and turns them into
// an XLSX report for moderators.
package roster

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feral-kitty/fifi/errors"
)

// EventType classifies a membership change.
type EventType string

const (
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"
	EventBan   EventType = "ban"
)

// Event is one recorded membership change.
type Event struct {
	ID         int64
	MemberID   int64
	MemberName string
	Type       EventType
	RoleNames  []string
	Reason     string
	OccurredAt time.Time
}

// Period is one completed stay on the server, closed by a leave or ban.
type Period struct {
	MemberID   int64
	MemberName string
	Joined     time.Time
	Left       time.Time
	LeftType   EventType
	Reason     string
	TotalDays  int
}

// EventStore appends and replays member events.
type EventStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewEventStore wraps an opened, migrated database.
func NewEventStore(conn *sql.DB, log *zap.SugaredLogger) *EventStore {
	return &EventStore{db: conn, logger: log}
}

// Record appends one event.
func (s *EventStore) Record(ctx context.Context, ev Event) error {
	if ev.Type != EventJoin && ev.Type != EventLeave && ev.Type != EventBan {
		return errors.Wrapf(errors.ErrInvalidRequest, "event type %q", ev.Type)
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO member_events (member_id, member_name, event, role_names, reason, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.MemberID, ev.MemberName, string(ev.Type),
		strings.Join(ev.RoleNames, ","), ev.Reason, ev.OccurredAt.UTC())
	if err != nil {
		return errors.Wrapf(err, "record %s event for member %d", ev.Type, ev.MemberID)
	}
	s.logger.Debugw("Member event recorded",
		"member_id", ev.MemberID,
		"event", string(ev.Type))
	return nil
}

// ActiveMembers replays all events and returns members whose latest event is
// a join, ordered by that join time.
func (s *EventStore) ActiveMembers(ctx context.Context) ([]Event, error) {
	events, err := s.allEvents(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[int64]Event)
	var order []int64
	for _, ev := range events {
		if _, seen := latest[ev.MemberID]; !seen {
			order = append(order, ev.MemberID)
		}
		latest[ev.MemberID] = ev
	}

	var active []Event
	for _, id := range order {
		if ev := latest[id]; ev.Type == EventJoin {
			active = append(active, ev)
		}
	}
	return active, nil
}

// Periods pairs each join with the leave or ban that closed it. Members who
// rejoin produce one period per completed stay. Results come back most
// recent departure first, split by how the stay ended.
func (s *EventStore) Periods(ctx context.Context) (left, banned []Period, err error) {
	events, err := s.allEvents(ctx)
	if err != nil {
		return nil, nil, err
	}

	type open struct {
		joined time.Time
		name   string
	}
	current := make(map[int64]open)
	for _, ev := range events {
		switch ev.Type {
		case EventJoin:
			current[ev.MemberID] = open{joined: ev.OccurredAt, name: ev.MemberName}
		case EventLeave, EventBan:
			stay, ok := current[ev.MemberID]
			if !ok {
				continue
			}
			delete(current, ev.MemberID)
			p := Period{
				MemberID:   ev.MemberID,
				MemberName: ev.MemberName,
				Joined:     stay.joined,
				Left:       ev.OccurredAt,
				LeftType:   ev.Type,
				Reason:     ev.Reason,
				TotalDays:  daysBetween(stay.joined, ev.OccurredAt),
			}
			if p.MemberName == "" {
				p.MemberName = stay.name
			}
			if ev.Type == EventLeave {
				left = append(left, p)
			} else {
				banned = append(banned, p)
			}
		}
	}

	sortPeriods(left)
	sortPeriods(banned)
	return left, banned, nil
}

func (s *EventStore) allEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, member_name, event, role_names, reason, occurred_at
		 FROM member_events
		 ORDER BY occurred_at ASC, id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query member events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var eventType, roleNames string
		if err := rows.Scan(&ev.ID, &ev.MemberID, &ev.MemberName, &eventType, &roleNames, &ev.Reason, &ev.OccurredAt); err != nil {
			return nil, errors.Wrap(err, "scan member event")
		}
		ev.Type = EventType(eventType)
		if roleNames != "" {
			ev.RoleNames = strings.Split(roleNames, ",")
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate member events")
	}
	return events, nil
}

func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func sortPeriods(periods []Period) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Left.After(periods[j].Left)
	})
}
