package directory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
)

// UserLister lists raw directory records. Implemented by *Client.
type UserLister interface {
	ListUsers(ctx context.Context, cred player.Credential) ([]PlayerRecordDTO, error)
}

// Recorder receives fetch statistics. Implemented by *metrics.Metrics.
type Recorder interface {
	DirectoryRequest(outcome string)
	RecordRejected(field string)
}

type nopRecorder struct{}

func (nopRecorder) DirectoryRequest(string) {}
func (nopRecorder) RecordRejected(string)   {}

// Fetcher builds the candidate pool for a matching run.
type Fetcher struct {
	lister   UserLister
	mapper   *Mapper
	logger   *slog.Logger
	recorder Recorder
}

// NewFetcher creates a Fetcher. recorder may be nil.
func NewFetcher(lister UserLister, mapper *Mapper, logger *slog.Logger, recorder Recorder) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Fetcher{
		lister:   lister,
		mapper:   mapper,
		logger:   logger.With("component", "candidate_fetcher"),
		recorder: recorder,
	}
}

var _ player.Directory = (*Fetcher)(nil)

// ListPlayers returns every valid directory player except excludeID, in
// directory order. Any failure yields an empty pool.
func (f *Fetcher) ListPlayers(ctx context.Context, cred player.Credential, excludeID string) []player.Player {
	if cred.IsEmpty() {
		f.recorder.DirectoryRequest("no_credential")
		f.logger.Warn("directory fetch skipped: no credential")
		return []player.Player{}
	}

	records, err := f.lister.ListUsers(ctx, cred)
	if err != nil {
		f.recorder.DirectoryRequest("error")
		f.logger.Warn("directory fetch failed", "error", errors.Join(shared.ErrNetworkFailure, err))
		return []player.Player{}
	}
	f.recorder.DirectoryRequest("ok")

	pool := make([]player.Player, 0, len(records))
	for _, rec := range records {
		p, verr := f.mapper.ParseRecord(rec)
		if verr != nil {
			f.recorder.RecordRejected(verr.Field)
			f.logger.Debug("directory record rejected",
				"record_id", verr.RecordID,
				"field", verr.Field,
				"reason", verr.Reason,
			)
			continue
		}
		if p.ID == excludeID {
			continue
		}
		pool = append(pool, p)
	}

	f.logger.Debug("candidate pool built", "records", len(records), "pool", len(pool))
	return pool
}
