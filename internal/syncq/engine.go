package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vistohub/vistoriago/internal/config"
)

// errParentPending marks a child whose parent has not synced yet. Not an
// attempt: the entry stays pending untouched for the next cycle.
var errParentPending = errors.New("parent not yet synced")

// Engine drains the local queue against the server. One worker goroutine
// performs drains; the ticker, the connectivity probe and manual kicks only
// request them, and a drain already in progress absorbs the request.
type Engine struct {
	mu sync.Mutex

	store  *Store
	client *Client
	cfg    *config.SyncConfig

	isRunning       bool
	drainInProgress bool
	online          bool
	lastDrain       time.Time

	stopChan chan struct{}
	kickChan chan struct{}
}

// NewEngine creates a sync engine over an opened queue store
func NewEngine(store *Store, client *Client, cfg *config.SyncConfig) *Engine {
	return &Engine{
		store:    store,
		client:   client,
		cfg:      cfg,
		stopChan: make(chan struct{}),
		kickChan: make(chan struct{}, 1),
	}
}

// Start launches the drain worker and the connectivity probe
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		return fmt.Errorf("sync engine already running")
	}
	e.isRunning = true

	go e.worker()
	go e.healthLoop()

	if e.cfg.DrainOnStartup {
		e.Kick()
	}

	log.Info().Msg("Sync engine started")
	return nil
}

// Stop shuts the engine down. An in-flight drain finishes its current entry.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isRunning {
		return
	}
	e.isRunning = false
	close(e.stopChan)
	log.Info().Msg("Sync engine stopped")
}

// Kick requests a drain. Non-blocking: if one is already requested or
// running, the signal is dropped.
func (e *Engine) Kick() {
	select {
	case e.kickChan <- struct{}{}:
	default:
	}
}

// Online reports the last connectivity probe result
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// worker serializes drains: periodic ticks and kicks land here
func (e *Engine) worker() {
	ticker := time.NewTicker(time.Duration(e.cfg.DrainInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.kickChan:
			e.drain()
		case <-ticker.C:
			e.drain()
		case <-e.stopChan:
			return
		}
	}
}

// healthLoop probes the server and kicks a drain on an offline-to-online
// transition, so queued work flushes as soon as connectivity returns
func (e *Engine) healthLoop() {
	ticker := time.NewTicker(time.Duration(e.cfg.HealthInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := e.client.Health(ctx)
			cancel()

			e.mu.Lock()
			wasOnline := e.online
			e.online = err == nil
			e.mu.Unlock()

			if err == nil && !wasOnline {
				log.Info().Msg("Connectivity restored, draining queue")
				e.Kick()
			}
		case <-e.stopChan:
			return
		}
	}
}

// drain pushes all pending entries, parents before children. Entries already
// synced are skipped; a failed parent skips its children for this cycle.
func (e *Engine) drain() {
	e.mu.Lock()
	if e.drainInProgress {
		e.mu.Unlock()
		return
	}
	e.drainInProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.drainInProgress = false
		e.lastDrain = time.Now()
		e.mu.Unlock()
	}()

	start := time.Now()
	var synced, failed int

	if _, err := e.store.Promote(); err != nil {
		log.Error().Err(err).Msg("Failed to promote captured entries")
		return
	}

	for _, kind := range drainOrder {
		entries, err := e.store.Pending(kind)
		if err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to read queue")
			return
		}
		for i := range entries {
			err := e.processEntry(&entries[i])
			switch {
			case err == nil:
				synced++
			case errors.Is(err, errParentPending):
				// Parent failed earlier in this cycle; retried next time
			default:
				failed++
				// Transport failure means the server is unreachable;
				// the rest of the cycle would fail the same way.
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					log.Warn().Err(err).Msg("Server unreachable, aborting drain")
					return
				}
			}
		}
	}

	if synced > 0 || failed > 0 {
		log.Info().
			Int("synced", synced).
			Int("failed", failed).
			Dur("duration", time.Since(start)).
			Msg("Drain cycle completed")
	}

	if e.cfg.DeleteAfterSync {
		e.cleanupFiles()
	}
}

// processEntry submits one entry and records the outcome
func (e *Engine) processEntry(entry *Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	serverID, err := e.submit(ctx, entry)
	if errors.Is(err, errParentPending) {
		return err
	}
	if err != nil {
		var apiErr *APIError
		terminal := errors.As(err, &apiErr) && !apiErr.Retryable()
		if markErr := e.store.MarkFailed(entry, err.Error(), terminal, e.cfg.MaxTries); markErr != nil {
			log.Error().Err(markErr).Uint("entry", entry.ID).Msg("Failed to record queue failure")
		}
		log.Warn().Err(err).
			Str("kind", string(entry.Kind)).
			Str("ref", entry.ClientRef).
			Bool("terminal", terminal).
			Msg("Queue entry failed")
		return err
	}

	if err := e.store.MarkSynced(entry, serverID); err != nil {
		// The server accepted it; the ClientRef makes the redo harmless.
		log.Error().Err(err).Uint("entry", entry.ID).Msg("Failed to record acknowledgment")
		return err
	}
	return nil
}

// submit dispatches an entry to the matching server operation
func (e *Engine) submit(ctx context.Context, entry *Entry) (uuid.UUID, error) {
	switch entry.Kind {
	case KindInspection:
		return e.client.CreateInspection(ctx, entry.Payload)

	case KindRoom:
		inspectionID, ok := e.store.ServerIDFor(entry.ParentRef)
		if !ok {
			return uuid.Nil, fmt.Errorf("%w: inspection %s", errParentPending, entry.ParentRef)
		}
		return e.client.CreateRoom(ctx, inspectionID, entry.Payload)

	case KindPhoto:
		room, err := e.store.Lookup(entry.ParentRef)
		if err != nil || room.ServerID == nil {
			return uuid.Nil, fmt.Errorf("%w: room %s", errParentPending, entry.ParentRef)
		}
		inspectionID, ok := e.store.ServerIDFor(room.ParentRef)
		if !ok {
			return uuid.Nil, fmt.Errorf("%w: inspection %s", errParentPending, room.ParentRef)
		}
		var meta struct {
			Caption  string `json:"caption"`
			Position int    `json:"position"`
		}
		if len(entry.Payload) > 0 {
			json.Unmarshal(entry.Payload, &meta)
		}
		return e.client.UploadPhoto(ctx, inspectionID, *room.ServerID, entry.FilePath, entry.ClientRef, meta.Caption, meta.Position)

	case KindPDF:
		inspectionID, ok := e.store.ServerIDFor(entry.ParentRef)
		if !ok {
			return uuid.Nil, fmt.Errorf("%w: inspection %s", errParentPending, entry.ParentRef)
		}
		if _, err := e.client.UploadPDF(ctx, inspectionID, entry.FilePath); err != nil {
			return uuid.Nil, err
		}
		return inspectionID, nil

	case KindFinalize:
		inspectionID, ok := e.store.ServerIDFor(entry.ParentRef)
		if !ok {
			return uuid.Nil, fmt.Errorf("%w: inspection %s", errParentPending, entry.ParentRef)
		}
		return e.client.Finalize(ctx, inspectionID, entry.Payload)
	}
	return uuid.Nil, fmt.Errorf("unknown entry kind: %s", entry.Kind)
}

// cleanupFiles removes local photo and report files once acknowledged
func (e *Engine) cleanupFiles() {
	entries, err := e.store.Synced()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list synced entries for cleanup")
		return
	}
	for i := range entries {
		entry := &entries[i]
		if err := os.Remove(entry.FilePath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", entry.FilePath).Msg("Failed to remove synced file")
			continue
		}
		if err := e.store.ClearFile(entry); err != nil {
			log.Warn().Err(err).Uint("entry", entry.ID).Msg("Failed to clear file path")
		}
	}
}
