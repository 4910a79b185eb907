package rounds

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snakeiaserver/internal/game"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	Stream       = "rounds_stream"
	streamMaxLen = 10000
)

var ErrRoundNotFound = errors.New("round not found")

type PlayerDTO struct {
	Slot     int    `json:"slot"      example:"1"`
	Name     string `json:"name"      example:"alice"`
	Kind     string `json:"kind"      example:"HUMAN"`
	Score    int    `json:"score"     example:"12"`
	GameOver bool   `json:"game_over"`
} // @name RoundPlayer

type RoundDTO struct {
	ID            string      `json:"id"         example:"4b0c5d0e-7f7b-4c39-9a43-5d3d1f8d9a10"`
	Code          string      `json:"code"       example:"a1b2c3d4"`
	StartedAt     time.Time   `json:"started_at" example:"2025-07-27T16:05:05Z"`
	EndedAt       time.Time   `json:"ended_at"   example:"2025-07-27T16:07:45Z"`
	Ticks         int         `json:"ticks"`
	ScoreMax      int         `json:"score_max"`
	Finished      bool        `json:"finished"`
	ErrorOccurred bool        `json:"error_occurred"`
	Players       []PlayerDTO `json:"players,omitempty"`
} // @name Round

// Entry is one recorded round as it travels through the stream.
type Entry struct {
	ID string `json:"id"`
	game.RoundResult
}

type IRoundService interface {
	Record(ctx context.Context, res game.RoundResult) error
	ListRounds(ctx context.Context, limit, offset int) ([]RoundDTO, error)
	GetRound(ctx context.Context, id string) (*RoundDTO, error)
}

type roundService struct {
	rdc redis.Cmdable
	db  *sql.DB
}

var _ game.RoundRecorder = (*roundService)(nil)

// NewRoundService records rounds into the Redis stream when rdc is set and
// straight into Postgres otherwise. Reads need db.
func NewRoundService(rdc redis.Cmdable, db *sql.DB) IRoundService {
	return &roundService{rdc: rdc, db: db}
}

func (svc *roundService) Record(ctx context.Context, res game.RoundResult) error {
	entry := Entry{ID: uuid.NewString(), RoundResult: res}

	if svc.rdc == nil {
		if svc.db == nil {
			return nil
		}
		return Persist(ctx, svc.db, []Entry{entry})
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode round: %w", err)
	}
	return svc.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: []any{"id", entry.ID, "round", string(payload)},
	}).Err()
}

// Persist writes a batch of rounds in one transaction. Replayed entries are
// ignored.
func Persist(ctx context.Context, db *sql.DB, entries []Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insRound = `
	  INSERT INTO rounds (id, code, started_at, ended_at, ticks,
	                      score_max, finished, error_occurred)
	       VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	  ON CONFLICT (id) DO NOTHING`
	const insPlayer = `
	  INSERT INTO round_players (round_id, slot, name, kind, score, game_over)
	       VALUES ($1, $2, $3, $4, $5, $6)
	  ON CONFLICT DO NOTHING`

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insRound,
			e.ID, e.Code, e.StartedAt, e.EndedAt, e.Ticks,
			e.ScoreMax, e.Finished, e.ErrorOccurred,
		); err != nil {
			return fmt.Errorf("insert round %s: %w", e.ID, err)
		}
		for _, p := range e.Players {
			if _, err := tx.ExecContext(ctx, insPlayer,
				e.ID, p.Slot, p.Name, p.Kind, p.Score, p.GameOver,
			); err != nil {
				return fmt.Errorf("insert round %s player %d: %w", e.ID, p.Slot, err)
			}
		}
	}
	return tx.Commit()
}

func (svc *roundService) GetRound(ctx context.Context, id string) (*RoundDTO, error) {
	if svc.db == nil {
		return nil, ErrRoundNotFound
	}

	const q = `SELECT id, code, started_at, ended_at, ticks,
                      score_max, finished, error_occurred
                 FROM rounds WHERE id = $1`
	dto := &RoundDTO{}
	if err := svc.db.QueryRowContext(ctx, q, id).Scan(&dto.ID, &dto.Code,
		&dto.StartedAt, &dto.EndedAt, &dto.Ticks,
		&dto.ScoreMax, &dto.Finished, &dto.ErrorOccurred); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRoundNotFound, id)
		}
		return nil, err
	}

	const pq = `SELECT slot, name, kind, score, game_over
                  FROM round_players WHERE round_id = $1 ORDER BY slot`
	rows, err := svc.db.QueryContext(ctx, pq, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dto.Players = []PlayerDTO{}
	for rows.Next() {
		var p PlayerDTO
		if err := rows.Scan(&p.Slot, &p.Name, &p.Kind, &p.Score, &p.GameOver); err != nil {
			return nil, err
		}
		dto.Players = append(dto.Players, p)
	}
	return dto, rows.Err()
}

func (svc *roundService) ListRounds(ctx context.Context, limit, offset int) ([]RoundDTO, error) {
	if svc.db == nil {
		return []RoundDTO{}, nil
	}
	if limit == 0 {
		limit = 10
	}

	const q = `SELECT id, code, started_at, ended_at, ticks,
                      score_max, finished, error_occurred
                 FROM rounds ORDER BY ended_at DESC LIMIT $1 OFFSET $2`
	rows, err := svc.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]RoundDTO, 0, limit)
	for rows.Next() {
		var r RoundDTO
		if err := rows.Scan(&r.ID, &r.Code, &r.StartedAt, &r.EndedAt, &r.Ticks,
			&r.ScoreMax, &r.Finished, &r.ErrorOccurred); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
