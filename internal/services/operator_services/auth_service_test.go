package operator_services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-livechat/internal/auth"
	"github.com/iyunix/go-livechat/internal/repository/operator"
	"github.com/iyunix/go-livechat/internal/testutil"
)

const testSecret = "a-test-secret-of-reasonable-length"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

func newServices(t *testing.T) (*AuthService, *OperatorService) {
	t.Helper()
	repo := operator.NewGormOperatorRepository(testutil.NewTestDB(t))
	return NewAuthService(repo, testSecret, time.Hour, nopLogger{}), NewOperatorService(repo, nopLogger{})
}

func TestLoginIssuesValidToken(t *testing.T) {
	authService, operators := newServices(t)
	ctx := context.Background()
	created, err := operators.CreateOperator(ctx, "Agent@Example.com", "Agent", "correct-horse")
	require.NoError(t, err)

	op, token, err := authService.Login(ctx, "  agent@example.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, op.ID)

	operatorID, err := authService.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, operatorID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	authService, operators := newServices(t)
	ctx := context.Background()
	_, err := operators.CreateOperator(ctx, "agent@example.com", "Agent", "correct-horse")
	require.NoError(t, err)

	_, _, err = authService.Login(ctx, "agent@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = authService.Login(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = authService.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsUnknownOperatorAndGarbage(t *testing.T) {
	authService, _ := newServices(t)
	ctx := context.Background()

	_, err := authService.ValidateToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = authService.ValidateToken(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	orphan, err := auth.GenerateJWT(99, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	_, err = authService.ValidateToken(ctx, orphan)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateOperatorValidation(t *testing.T) {
	_, operators := newServices(t)
	ctx := context.Background()

	_, err := operators.CreateOperator(ctx, "agent@example.com", "Agent", "short")
	assert.Error(t, err)
	_, err = operators.CreateOperator(ctx, "not-an-email", "Agent", "long-enough-password")
	assert.Error(t, err)

	_, err = operators.CreateOperator(ctx, "agent@example.com", "Agent", "long-enough-password")
	require.NoError(t, err)
	_, err = operators.CreateOperator(ctx, "AGENT@example.com", "Twin", "long-enough-password")
	assert.ErrorIs(t, err, operator.ErrEmailTaken)

	all, err := operators.ListOperators(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "ag****@example.com", maskEmail("agent@example.com"))
	assert.Equal(t, "a****@x.io", maskEmail("a@x.io"))
	assert.Equal(t, "****", maskEmail("nope"))
}
