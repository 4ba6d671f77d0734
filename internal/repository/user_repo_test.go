package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-identity/internal/model"
)

const testUserID = "7f1c2a8e-4b1d-4d0e-9a55-0c5f2f1a9b10"

func ptr[T any](v T) *T { return &v }

var userColumns = []string{
	"id", "email", "password_hash", "name", "cpf", "phone", "avatar_url",
	"is_active", "is_staff", "is_superuser",
	"direction_id", "direction_name", "management_id", "management_name", "coordination_id", "coordination_name",
	"failed_login_attempts", "locked_until", "created_at", "updated_at",
}

func userRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns).AddRow(
		testUserID, "ana@example.com", "$argon2id$hash", "Ana", ptr("123.456.789-00"), (*string)(nil), (*string)(nil),
		true, false, false,
		ptr(int64(1)), ptr("Operations"), ptr(int64(2)), ptr("Logistics"), (*int64)(nil), (*string)(nil),
		0, (*time.Time)(nil), now, now,
	)
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

func TestUserRepository_FindByEmail(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		email     string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name:  "normalizes email and resolves org names",
			email: "  Ana@Example.COM ",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users u`).
					WithArgs("ana@example.com").
					WillReturnRows(userRow(now))
			},
		},
		{
			name:  "missing user",
			email: "ghost@example.com",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users u`).
					WithArgs("ghost@example.com").
					WillReturnRows(pgxmock.NewRows(userColumns))
			},
			wantErr:  model.ErrUserNotFound,
			wantCode: "USER_NOT_FOUND",
		},
		{
			name:  "database error",
			email: "ana@example.com",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users u`).
					WithArgs("ana@example.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "USER_QUERY_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			got, err := repo.FindByEmail(context.Background(), tt.email)

			if tt.wantCode != "" {
				require.Error(t, err)
				assertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, testUserID, got.ID)
				assert.Equal(t, "Ana", got.Name)
				require.NotNil(t, got.Org.DirectionName)
				assert.Equal(t, "Operations", *got.Org.DirectionName)
				assert.Equal(t, int64(2), *got.Org.ManagementID)
				assert.Nil(t, got.Org.CoordinationID)
				assert.Nil(t, got.Phone)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_FindByIDRejectsNonUUID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)
	_, err = repo.FindByID(context.Background(), "not-a-uuid")

	require.ErrorIs(t, err, model.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create(t *testing.T) {
	now := time.Now().UTC()
	user := model.User{
		ID:           testUserID,
		Email:        "Ana@Example.com",
		PasswordHash: "$argon2id$hash",
		Name:         "Ana",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.Run("inserts normalized email", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(testUserID, "ana@example.com", "$argon2id$hash", "Ana",
				(*string)(nil), (*string)(nil), (*string)(nil),
				true, false, false,
				(*int64)(nil), (*int64)(nil), (*int64)(nil), now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewUserRepository(mock).Create(context.Background(), user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err = NewUserRepository(mock).Create(context.Background(), user)
		require.ErrorIs(t, err, model.ErrUserAlreadyExists)
		assertErrorCode(t, err, "USER_ALREADY_EXISTS")
	})
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	tests := []struct {
		name     string
		result   pgconn.CommandTag
		execErr  error
		wantCode string
	}{
		{name: "updated", result: pgxmock.NewResult("UPDATE", 1)},
		{name: "unknown user", result: pgxmock.NewResult("UPDATE", 0), wantCode: "USER_NOT_FOUND"},
		{name: "database error", execErr: errors.New("boom"), wantCode: "USER_PASSWORD_UPDATE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			exp := mock.ExpectExec(`UPDATE users SET password_hash`).
				WithArgs(testUserID, "new-hash", pgxmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err = NewUserRepository(mock).UpdatePassword(context.Background(), testUserID, "new-hash")
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				assertErrorCode(t, err, tt.wantCode)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_RecordLoginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	until := time.Now().Add(15 * time.Minute).UTC()
	mock.ExpectExec(`failed_login_attempts = CASE`).
		WithArgs(testUserID, 5, until, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewUserRepository(mock).RecordLoginFailure(context.Background(), testUserID, 5, until))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	user := model.User{
		ID:        testUserID,
		Name:      "Ana Maria",
		Phone:     ptr("+55 11 99999-0000"),
		IsActive:  true,
		Org:       model.OrgPlacement{DirectionID: ptr(int64(1))},
		UpdatedAt: now,
	}

	mock.ExpectExec(`UPDATE users SET name`).
		WithArgs(testUserID, "Ana Maria", (*string)(nil), user.Phone, (*string)(nil),
			true, false, false,
			user.Org.DirectionID, (*int64)(nil), (*int64)(nil), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewUserRepository(mock).Save(context.Background(), user)
	require.ErrorIs(t, err, model.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
