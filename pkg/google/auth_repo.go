package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

var ErrUnknownNonce = errors.New("unknown authentication nonce")

// AuthRepository keeps one pending or completed Google authorization per user.
type AuthRepository interface {
	// StartAuth replaces any previous authorization of the user with a pending one.
	StartAuth(ctx context.Context, userId int, nonce string) error
	StoreToken(ctx context.Context, nonce string, token *oauth2.Token) error
	// GetToken returns nil when the user never completed authorization.
	GetToken(ctx context.Context, userId int) (*oauth2.Token, error)
	DeleteAuth(ctx context.Context, userId int) error
}

type AuthRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepositoryImpl {
	return &AuthRepositoryImpl{db: db}
}

func (r *AuthRepositoryImpl) StartAuth(ctx context.Context, userId int, nonce string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM google_calendar_auth WHERE user_id = $1", userId); err != nil {
			return fmt.Errorf("failed to delete old Google auth row: %w", err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO google_calendar_auth (user_id, nonce) VALUES ($1, $2)", userId, nonce); err != nil {
			return fmt.Errorf("failed to store Google auth nonce: %w", err)
		}
		return nil
	})
}

func (r *AuthRepositoryImpl) StoreToken(ctx context.Context, nonce string, token *oauth2.Token) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE google_calendar_auth SET access_token = $1, refresh_token = $2, expiry = $3 WHERE nonce = $4",
		token.AccessToken, token.RefreshToken, token.Expiry.Unix(), nonce)
	if err != nil {
		return fmt.Errorf("unable to store Google auth token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownNonce
	}
	return nil
}

func (r *AuthRepositoryImpl) GetToken(ctx context.Context, userId int) (*oauth2.Token, error) {
	var accessToken, refreshToken *string
	var expiry *int64
	err := r.db.QueryRow(ctx,
		"SELECT access_token, refresh_token, expiry FROM google_calendar_auth WHERE user_id = $1", userId).
		Scan(&accessToken, &refreshToken, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google auth token: %w", err)
	}
	if accessToken == nil {
		// login started but the callback never arrived
		return nil, nil
	}

	token := &oauth2.Token{AccessToken: *accessToken}
	if refreshToken != nil {
		token.RefreshToken = *refreshToken
	}
	if expiry != nil {
		token.Expiry = time.Unix(*expiry, 0)
	}
	return token, nil
}

func (r *AuthRepositoryImpl) DeleteAuth(ctx context.Context, userId int) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM google_calendar_auth WHERE user_id = $1", userId); err != nil {
		return fmt.Errorf("failed to delete Google auth row: %w", err)
	}
	return nil
}
