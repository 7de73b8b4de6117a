package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Encounter is one archived recording session.
type Encounter struct {
	ID            int64           `json:"id"`
	InteractionID string          `json:"interactionId"`
	State         string          `json:"state"`
	StartedAt     time.Time       `json:"startedAt"`
	EndedAt       time.Time       `json:"endedAt"`
	Transcript    string          `json:"transcript"`
	Facts         json.RawMessage `json:"facts"`
	FactCount     int             `json:"factCount"`
	Credits       float64         `json:"credits"`
	SentFrames    int64           `json:"sentFrames"`
}

// SaveEncounter inserts an archived session row.
func (db *DB) SaveEncounter(e Encounter) (int64, error) {
	facts := e.Facts
	if len(facts) == 0 {
		facts = json.RawMessage("[]")
	}
	res, err := db.sql.Exec(`
		INSERT INTO encounters
			(interaction_id, state, started_at, ended_at, transcript, facts_json, fact_count, credits, sent_frames)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.InteractionID,
		e.State,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.EndedAt.UTC().Format(time.RFC3339Nano),
		e.Transcript,
		string(facts),
		e.FactCount,
		e.Credits,
		e.SentFrames,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting encounter: %w", err)
	}
	return res.LastInsertId()
}

// ListEncounters returns the most recent encounters, newest first.
func (db *DB) ListEncounters(limit int) ([]Encounter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.sql.Query(`
		SELECT id, interaction_id, state, started_at, ended_at, transcript, facts_json, fact_count, credits, sent_frames
		FROM encounters
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing encounters: %w", err)
	}
	defer rows.Close()

	encounters := []Encounter{}
	for rows.Next() {
		var (
			e                  Encounter
			startedAt, endedAt string
			facts              string
		)
		if err := rows.Scan(&e.ID, &e.InteractionID, &e.State, &startedAt, &endedAt,
			&e.Transcript, &facts, &e.FactCount, &e.Credits, &e.SentFrames); err != nil {
			return nil, fmt.Errorf("scanning encounter: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		e.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt)
		e.Facts = json.RawMessage(facts)
		encounters = append(encounters, e)
	}
	return encounters, rows.Err()
}

// GetEncounter returns one encounter by interaction id, newest row if the
// same interaction was archived more than once.
func (db *DB) GetEncounter(interactionID string) (Encounter, error) {
	row := db.sql.QueryRow(`
		SELECT id, interaction_id, state, started_at, ended_at, transcript, facts_json, fact_count, credits, sent_frames
		FROM encounters
		WHERE interaction_id = ?
		ORDER BY id DESC
		LIMIT 1`, interactionID)

	var (
		e                  Encounter
		startedAt, endedAt string
		facts              string
	)
	err := row.Scan(&e.ID, &e.InteractionID, &e.State, &startedAt, &endedAt,
		&e.Transcript, &facts, &e.FactCount, &e.Credits, &e.SentFrames)
	if err == sql.ErrNoRows {
		return Encounter{}, fmt.Errorf("encounter %s: not found", interactionID)
	}
	if err != nil {
		return Encounter{}, fmt.Errorf("reading encounter: %w", err)
	}
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	e.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt)
	e.Facts = json.RawMessage(facts)
	return e, nil
}

// SaveDocument archives a generated document body verbatim.
func (db *DB) SaveDocument(interactionID, templateKey string, body []byte) (int64, error) {
	res, err := db.sql.Exec(`
		INSERT INTO documents (interaction_id, template_key, created_at, body_json)
		VALUES (?, ?, ?, ?)`,
		interactionID, templateKey, time.Now().UTC().Format(time.RFC3339Nano), string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting document: %w", err)
	}
	return res.LastInsertId()
}

// ListDocuments returns archived documents for an interaction, newest first.
func (db *DB) ListDocuments(interactionID string) ([]json.RawMessage, error) {
	rows, err := db.sql.Query(`
		SELECT body_json FROM documents
		WHERE interaction_id = ?
		ORDER BY id DESC`, interactionID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, json.RawMessage(body))
	}
	return docs, rows.Err()
}
