package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
)

var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchConflict        = errors.New("match slot already exists for this tournament, round and order")
	ErrMatchAlreadyResolved = errors.New("match already has a winner")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// ListByTournament returns matches ordered by round, then match order.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, round *int) ([]*models.Match, error)
	// UpdateResult stores scores, winner and game link. It succeeds only for
	// a match without a winner and is the serialization point for results.
	UpdateResult(ctx context.Context, exec SQLExecutor, m *models.Match) error
	// AssignSlot writes a propagated player into one side of an unresolved
	// match and returns the updated row. A bye also makes that player the
	// winner.
	AssignSlot(ctx context.Context, exec SQLExecutor, matchID int, slot brackets.Slot, userID int, bye bool) (*models.Match, error)
}

type postgresMatchRepository struct {
	db *sqlx.DB
}

func NewPostgresMatchRepository(db *sqlx.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, round, match_order, player1_id, player2_id, player1_score, player2_score,
	winner_id, game_id, is_bye, status, reported_by, created_at, updated_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO tournament_matches (tournament_id, round, match_order, player1_id, player2_id, winner_id, is_bye, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := executorOr(exec, r.db).QueryRowContext(ctx, query,
		m.TournamentID,
		m.Round,
		m.MatchOrder,
		m.Player1ID,
		m.Player2ID,
		m.WinnerID,
		m.IsBye,
		m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if code, constraint := pqConstraintError(err); code == pqUniqueViolation && constraint == "tournament_matches_tournament_id_round_match_order_key" {
			return ErrMatchConflict
		}
		return fmt.Errorf("failed to create match (round %d, order %d): %w", m.Round, m.MatchOrder, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM tournament_matches WHERE id = $1`
	var m models.Match
	if err := sqlx.GetContext(ctx, executorOr(exec, r.db), &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return &m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, round *int) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	args := []interface{}{tournamentID}

	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM tournament_matches WHERE tournament_id = $1`)
	if round != nil {
		queryBuilder.WriteString(" AND round = $2")
		args = append(args, *round)
	}
	queryBuilder.WriteString(" ORDER BY round ASC, match_order ASC")

	matches := make([]*models.Match, 0)
	if err := sqlx.SelectContext(ctx, executorOr(exec, r.db), &matches, queryBuilder.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE tournament_matches
		SET player1_score = $1, player2_score = $2, winner_id = $3, game_id = $4, status = $5, reported_by = $6, updated_at = NOW()
		WHERE id = $7 AND winner_id IS NULL`

	result, err := executorOr(exec, r.db).ExecContext(ctx, query,
		m.Player1Score,
		m.Player2Score,
		m.WinnerID,
		m.GameID,
		m.Status,
		m.ReportedBy,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to store result of match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchAlreadyResolved)
}

// AssignSlot writes only the propagated column, so concurrent winners of
// sibling matches never overwrite each other. The match status is derived
// from the row as it stands when the update runs.
func (r *postgresMatchRepository) AssignSlot(ctx context.Context, exec SQLExecutor, matchID int, slot brackets.Slot, userID int, bye bool) (*models.Match, error) {
	column, other := "player1_id", "player2_id"
	if slot == brackets.SlotPlayer2 {
		column, other = other, column
	}
	query := `
		UPDATE tournament_matches
		SET ` + column + ` = $1,
			is_bye = $2::boolean,
			winner_id = CASE WHEN $2::boolean THEN $1 ELSE winner_id END,
			status = CASE
				WHEN $2::boolean THEN 'resolved'::match_status
				WHEN ` + other + ` IS NOT NULL THEN 'scheduled'::match_status
				ELSE 'unscheduled'::match_status
			END,
			updated_at = NOW()
		WHERE id = $3 AND winner_id IS NULL
		RETURNING ` + matchColumns

	var m models.Match
	if err := sqlx.GetContext(ctx, executorOr(exec, r.db), &m, query, userID, bye, matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchAlreadyResolved
		}
		return nil, fmt.Errorf("failed to assign %s of match %d: %w", column, matchID, err)
	}
	return &m, nil
}
