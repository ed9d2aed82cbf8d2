package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/models"
)

var ErrGameNotFound = errors.New("game not found")

type GameRepository interface {
	Create(ctx context.Context, exec SQLExecutor, g *models.Game) error
	GetByID(ctx context.Context, id int) (*models.Game, error)
}

type postgresGameRepository struct {
	db *sqlx.DB
}

func NewPostgresGameRepository(db *sqlx.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

func (r *postgresGameRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Game) error {
	query := `
		INSERT INTO games (player1_id, player2_id, player1_score, player2_score, winner_id, game_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, played_at`

	err := executorOr(exec, r.db).QueryRowContext(ctx, query,
		g.Player1ID,
		g.Player2ID,
		g.Player1Score,
		g.Player2Score,
		g.WinnerID,
		g.GameType,
	).Scan(&g.ID, &g.PlayedAt)
	if err != nil {
		return fmt.Errorf("failed to create game record: %w", err)
	}
	return nil
}

func (r *postgresGameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	query := `SELECT id, player1_id, player2_id, player1_score, player2_score, winner_id, game_type, played_at FROM games WHERE id = $1`
	var g models.Game
	if err := sqlx.GetContext(ctx, r.db, &g, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return &g, nil
}
