// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package feedback persists user ratings of generated diagrams in an
// embedded BadgerDB, so quality trends survive restarts without an
// external database.
package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/diagramlab/diagramlab/services/diagram/observability"
)

const keyPrefix = "feedback/"

// Entry is one stored feedback record.
type Entry struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	GenerationID string    `json:"generation_id,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats aggregates all stored feedback.
type Stats struct {
	Count         int         `json:"count"`
	AverageRating float64     `json:"average_rating"`
	ByRating      map[int]int `json:"by_rating"`
}

// Store wraps the feedback database.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens a persistent store at path, creating the directory if
// needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("feedback store path is required")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create feedback directory %s: %w", path, err)
	}
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open feedback database: %w", err)
	}
	return &Store{db: db, log: slog.Default()}, nil
}

// OpenInMemory opens a throwaway store for tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory feedback database: %w", err)
	}
	return &Store{db: db, log: slog.Default()}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores a feedback record and returns it with id and timestamp
// filled in.
func (s *Store) Add(sessionID, generationID string, rating int, comment string) (Entry, error) {
	entry := Entry{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		GenerationID: generationID,
		Rating:       rating,
		Comment:      comment,
		CreatedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding feedback: %w", err)
	}
	// Nanosecond timestamp prefix keeps iteration in arrival order.
	key := fmt.Sprintf("%s%020d/%s", keyPrefix, entry.CreatedAt.UnixNano(), entry.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("storing feedback: %w", err)
	}
	observability.FeedbackTotal.WithLabelValues(strconv.Itoa(rating)).Inc()
	s.log.Info("feedback stored",
		slog.String("session_id", sessionID),
		slog.Int("rating", rating))
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		// Reverse iteration starts past the last feedback key.
		seek := append([]byte(keyPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// Aggregate computes stats over every stored entry.
func (s *Store) Aggregate() (Stats, error) {
	stats := Stats{ByRating: make(map[int]int)}
	sum := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(keyPrefix)); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				stats.Count++
				stats.ByRating[e.Rating]++
				sum += e.Rating
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	if stats.Count > 0 {
		stats.AverageRating = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}
