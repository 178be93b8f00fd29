package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"profilewatch/profile"
)

const profileColumns = `nick, image_url, tags, last_post, last_post_time, friend,
	city, gender, married, age, joined, followers, status, posts,
	profile_url, intro, source, scraped_at`

// GetProfile returns the canonical record for a nick, or ErrNotFound.
// Lookup failures are returned as-is: the caller must treat them as
// retryable, never as "record absent".
func (s *DB) GetProfile(ctx context.Context, nick string) (*profile.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE nick = ?`, profile.Key(nick))

	var p profile.Profile
	var friend int
	var gender, married, status string
	var scrapedAt int64
	err := row.Scan(&p.Nick, &p.ImageURL, &p.Tags, &p.LastPost, &p.LastPostTime,
		&friend, &p.City, &gender, &married, &p.Age, &p.Joined, &p.Followers,
		&status, &p.Posts, &p.ProfileURL, &p.Intro, &p.Source, &scrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get profile %q: %w", nick, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile %q: %w", nick, err)
	}

	p.Friend = friend != 0
	p.Gender = profile.GenderFromString(gender)
	p.Married = profile.MaritalFromString(married)
	p.Verified = profile.VerificationFromString(status)
	p.ScrapedAt = time.UnixMilli(scrapedAt)
	return &p, nil
}

// UpsertProfile writes a record wholesale, keyed on the nick. The note is
// attached as row metadata so a human reviewing the table sees why the row
// last changed. Exactly one row per nick ever exists.
func (s *DB) UpsertProfile(ctx context.Context, p *profile.Profile, note string) error {
	friend := 0
	if p.Friend {
		friend = 1
	}
	now := time.Now().UnixMilli()

	_, err := execBusy(ctx, s, `
		INSERT INTO profiles (`+profileColumns+`, change_note, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(nick) DO UPDATE SET
			image_url = excluded.image_url,
			tags = excluded.tags,
			last_post = excluded.last_post,
			last_post_time = excluded.last_post_time,
			friend = excluded.friend,
			city = excluded.city,
			gender = excluded.gender,
			married = excluded.married,
			age = excluded.age,
			joined = excluded.joined,
			followers = excluded.followers,
			status = excluded.status,
			posts = excluded.posts,
			profile_url = excluded.profile_url,
			intro = excluded.intro,
			source = excluded.source,
			scraped_at = excluded.scraped_at,
			change_note = excluded.change_note,
			updated_at = excluded.updated_at`,
		profile.Key(p.Nick), p.ImageURL, p.Tags, p.LastPost, p.LastPostTime,
		friend, p.City, p.Gender.String(), p.Married.String(), p.Age, p.Joined,
		p.Followers, p.Verified.String(), p.Posts, p.ProfileURL, p.Intro,
		p.Source, p.ScrapedAt.UnixMilli(), note, now, now)
	return classify("upsert profile", err)
}

// TouchProfile advances only the last-scraped timestamp of an unchanged
// record. Field values and the change note are left alone.
func (s *DB) TouchProfile(ctx context.Context, nick string, at time.Time) error {
	_, err := execBusy(ctx, s,
		`UPDATE profiles SET scraped_at = ? WHERE nick = ?`,
		at.UnixMilli(), profile.Key(nick))
	return classify("touch profile", err)
}

// ChangeNote returns the annotation metadata stored with a profile row.
func (s *DB) ChangeNote(ctx context.Context, nick string) (string, error) {
	var note string
	err := s.db.QueryRowContext(ctx,
		`SELECT change_note FROM profiles WHERE nick = ?`, profile.Key(nick)).Scan(&note)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("store: change note %q: %w", nick, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: change note %q: %w", nick, err)
	}
	return note, nil
}

// BumpNickFrequency increments the visibility counter for a nick, creating
// the row on first sighting. The counter never decreases.
func (s *DB) BumpNickFrequency(ctx context.Context, nick string, seen time.Time) error {
	_, err := execBusy(ctx, s, `
		INSERT INTO nick_frequency (nick, times_seen, first_seen, last_seen)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(nick) DO UPDATE SET
			times_seen = times_seen + 1,
			last_seen = excluded.last_seen`,
		profile.Key(nick), seen.UnixMilli(), seen.UnixMilli())
	return classify("bump nick frequency", err)
}

// NickFrequency returns the visibility counter for a nick, or ErrNotFound.
func (s *DB) NickFrequency(ctx context.Context, nick string) (*NickFrequency, error) {
	var f NickFrequency
	var first, last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT nick, times_seen, first_seen, last_seen
		FROM nick_frequency WHERE nick = ?`, profile.Key(nick)).
		Scan(&f.Nick, &f.TimesSeen, &first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: nick frequency %q: %w", nick, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: nick frequency %q: %w", nick, err)
	}
	f.FirstSeen = time.UnixMilli(first)
	f.LastSeen = time.UnixMilli(last)
	return &f, nil
}
