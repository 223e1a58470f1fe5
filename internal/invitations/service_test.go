package invitations

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/reviewly/agencyhub-api/internal/models"
	"github.com/reviewly/agencyhub-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var invitationColumns = []string{
	"id", "type", "email", "agency_id", "role", "invited_by_user_id",
	"token_hash", "expires_at", "consumed_at", "created_at",
}

var membershipColumns = []string{"id", "user_id", "agency_id", "role", "joined_at"}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hasher, err := NewTokenHasher(HashPolicySHA256, "")
	require.NoError(t, err)

	svc := NewService(
		db,
		repository.NewInvitationRepository(db),
		repository.NewMembershipRepository(db),
		hasher,
		"http://localhost:3000",
		0,
		zerolog.Nop(),
	)
	svc.now = func() time.Time { return fixedNow }

	return svc, mock
}

func memberInvitationRow(svc *Service, token, agencyID string, expiresAt time.Time, consumedAt *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(invitationColumns).AddRow(
		"inv-1", "member", "new.hire@example.com", agencyID, "member", "user-inviter",
		svc.hasher.Hash(token), expiresAt, consumedAt, fixedNow.Add(-time.Hour),
	)
}

func TestService_GetValidInvitation(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("missing-token")).
			WillReturnError(sql.ErrNoRows)

		_, err := svc.GetValidInvitation(ctx, "missing-token")
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeNotFound, inviteErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Expired", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(-time.Minute), nil))

		_, err := svc.GetValidInvitation(ctx, "tok")
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeExpired, inviteErr.Code)
	})

	t.Run("ExpiryOutranksConsumption", func(t *testing.T) {
		svc, mock := newTestService(t)

		consumed := fixedNow.Add(-2 * time.Hour)
		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(-time.Minute), &consumed))

		_, err := svc.GetValidInvitation(ctx, "tok")
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeExpired, inviteErr.Code)
	})

	t.Run("Consumed", func(t *testing.T) {
		svc, mock := newTestService(t)

		consumed := fixedNow.Add(-time.Hour)
		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(time.Hour), &consumed))

		_, err := svc.GetValidInvitation(ctx, "tok")
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeConsumed, inviteErr.Code)
	})

	t.Run("Usable", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(time.Hour), nil))

		invitation, err := svc.GetValidInvitation(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, "inv-1", invitation.ID)
		assert.Equal(t, models.InvitationTypeMember, invitation.Type)
		require.NotNil(t, invitation.AgencyID)
		assert.Equal(t, "agency-1", *invitation.AgencyID)
		assert.Equal(t, models.RoleMember, invitation.GrantedRole())
	})
}

func TestService_AcceptInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsBlankInput", func(t *testing.T) {
		svc, mock := newTestService(t)

		for _, tc := range []struct{ token, userID string }{
			{"", "user-1"},
			{"tok", ""},
			{"  ", "user-1"},
		} {
			err := svc.AcceptInvite(ctx, tc.token, tc.userID)
			inviteErr, ok := AsInviteError(err)
			require.True(t, ok)
			assert.Equal(t, CodeInvalid, inviteErr.Code)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ClientInvitationNotImplemented", func(t *testing.T) {
		svc, mock := newTestService(t)

		rows := sqlmock.NewRows(invitationColumns).AddRow(
			"inv-2", "client", "client@example.com", nil, nil, "user-inviter",
			svc.hasher.Hash("tok"), fixedNow.Add(time.Hour), nil, fixedNow.Add(-time.Hour),
		)
		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(rows)

		err := svc.AcceptInvite(ctx, "tok", "user-1")
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeNotImplemented, inviteErr.Code)

		// The invitation must be left untouched; no transaction opens.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MemberInvitationMissingAgency", func(t *testing.T) {
		svc, mock := newTestService(t)

		rows := sqlmock.NewRows(invitationColumns).AddRow(
			"inv-3", "member", "new.hire@example.com", nil, "member", "user-inviter",
			svc.hasher.Hash("tok"), fixedNow.Add(time.Hour), nil, fixedNow.Add(-time.Hour),
		)
		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(rows)

		err := svc.AcceptInvite(ctx, "tok", "user-1")
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalid, inviteErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CreatesMembership", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(time.Hour), nil))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE invitations").
			WithArgs("inv-1", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM memberships").
			WithArgs("user-1", "agency-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("INSERT INTO memberships").
			WithArgs(sqlmock.AnyArg(), "user-1", "agency-1", "member", fixedNow).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow("mem-1", "user-1", "agency-1", "member", fixedNow))
		mock.ExpectCommit()

		err := svc.AcceptInvite(ctx, "tok", "user-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SecondAcceptanceLosesRace", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(time.Hour), nil))

		mock.ExpectBegin()
		// Another acceptance already flipped consumed_at; zero rows match.
		mock.ExpectExec("UPDATE invitations").
			WithArgs("inv-1", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := svc.AcceptInvite(ctx, "tok", "user-1")
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeConsumed, inviteErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ExistingMembershipIsIdempotent", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(time.Hour), nil))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE invitations").
			WithArgs("inv-1", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM memberships").
			WithArgs("user-1", "agency-1").
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow("mem-0", "user-1", "agency-1", "admin", fixedNow.Add(-24*time.Hour)))
		mock.ExpectCommit()

		err := svc.AcceptInvite(ctx, "tok", "user-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MembershipInsertFailureRollsBack", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM invitations").
			WithArgs(svc.hasher.Hash("tok")).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(time.Hour), nil))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE invitations").
			WithArgs("inv-1", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM memberships").
			WithArgs("user-1", "agency-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("INSERT INTO memberships").
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := svc.AcceptInvite(ctx, "tok", "user-1")
		require.Error(t, err)
		_, ok := AsInviteError(err)
		assert.False(t, ok, "infrastructure failures are not invite errors")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_CreateInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("PermissionDenied", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("FROM memberships").
			WithArgs("user-nobody", sqlmock.AnyArg()).
			WillReturnError(sql.ErrNoRows)

		_, err := svc.CreateInvite(ctx, CreateInviteInput{
			Email:         "new.hire@example.com",
			Role:          models.RoleMember,
			InviterUserID: "user-nobody",
		})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OwnerRoleNotGrantable", func(t *testing.T) {
		svc, mock := newTestService(t)

		_, err := svc.CreateInvite(ctx, CreateInviteInput{
			Email:         "new.hire@example.com",
			Role:          models.RoleOwner,
			InviterUserID: "user-1",
		})
		inviteErr, ok := AsInviteError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalid, inviteErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ExplicitAgency", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("AND role = ANY").
			WithArgs("user-admin", "agency-1", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow("mem-1", "user-admin", "agency-1", "admin", fixedNow.Add(-48*time.Hour)))

		mock.ExpectQuery("INSERT INTO invitations").
			WithArgs(
				sqlmock.AnyArg(),             // id
				"member",                     // type
				"new.hire@example.com",       // normalized email
				sqlmock.AnyArg(),             // agency id pointer
				"member",                     // role
				"user-admin",                 // inviter
				sqlmock.AnyArg(),             // token hash
				fixedNow.Add(7*24*time.Hour), // expiry
				fixedNow,                     // created at
			).
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(7*24*time.Hour), nil))

		result, err := svc.CreateInvite(ctx, CreateInviteInput{
			Email:         "  New.Hire@Example.COM ",
			Role:          models.RoleMember,
			InviterUserID: "user-admin",
			AgencyID:      "agency-1",
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(result.InviteURL, "http://localhost:3000/invite/"))
		rawToken := strings.TrimPrefix(result.InviteURL, "http://localhost:3000/invite/")
		assert.Len(t, rawToken, 64, "URL embeds the raw hex token")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ImplicitEarliestAgency", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("ORDER BY joined_at ASC").
			WithArgs("user-admin", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow("mem-1", "user-admin", "agency-first", "owner", fixedNow.Add(-240*time.Hour)))

		mock.ExpectQuery("INSERT INTO invitations").
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-first", fixedNow.Add(7*24*time.Hour), nil))

		result, err := svc.CreateInvite(ctx, CreateInviteInput{
			Email:         "new.hire@example.com",
			Role:          models.RoleAdmin,
			InviterUserID: "user-admin",
		})
		require.NoError(t, err)
		require.NotNil(t, result.Invitation.AgencyID)
		assert.Equal(t, "agency-first", *result.Invitation.AgencyID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PersistenceFailureIsGeneric", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("AND role = ANY").
			WithArgs("user-admin", "agency-1", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow("mem-1", "user-admin", "agency-1", "admin", fixedNow))

		mock.ExpectQuery("INSERT INTO invitations").
			WillReturnError(assert.AnError)

		_, err := svc.CreateInvite(ctx, CreateInviteInput{
			Email:         "new.hire@example.com",
			Role:          models.RoleMember,
			InviterUserID: "user-admin",
			AgencyID:      "agency-1",
		})
		assert.ErrorIs(t, err, ErrCreateInvite)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_ListAgencyInvitations(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresQualifyingMembership", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("AND role = ANY").
			WithArgs("user-member", "agency-1", sqlmock.AnyArg()).
			WillReturnError(sql.ErrNoRows)

		_, err := svc.ListAgencyInvitations(ctx, "user-member", "agency-1")
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListsForAdmin", func(t *testing.T) {
		svc, mock := newTestService(t)

		mock.ExpectQuery("AND role = ANY").
			WithArgs("user-admin", "agency-1", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow("mem-1", "user-admin", "agency-1", "admin", fixedNow))
		mock.ExpectQuery("FROM invitations").
			WithArgs("agency-1").
			WillReturnRows(memberInvitationRow(svc, "tok", "agency-1", fixedNow.Add(time.Hour), nil))

		invites, err := svc.ListAgencyInvitations(ctx, "user-admin", "agency-1")
		require.NoError(t, err)
		require.Len(t, invites, 1)
		assert.Equal(t, "inv-1", invites[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
