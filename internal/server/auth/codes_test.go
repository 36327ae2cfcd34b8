package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for range 200 {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
		}
	}
}

func TestCodeEngine_IssueAndCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com")

	issued, err := env.codes.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(DefaultCodeTTL), issued.ExpiresAt)
	assert.Equal(t, env.clock.Now().Add(DefaultCodeCooldown), issued.ResendAvailableAt)

	code := env.sender.lastCode("a@x.com")
	require.Len(t, code, 6)

	// Неверный код не гасит выданный
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, env.codes.Check(ctx, "a@x.com", wrong), ErrCodeMismatch)

	require.NoError(t, env.codes.Check(ctx, "a@x.com", code))

	// Код принимается только один раз
	assert.ErrorIs(t, env.codes.Check(ctx, "a@x.com", code), ErrCodeNotFound)
}

func TestCodeEngine_Issue_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.codes.Issue(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, 0, env.sender.calls)
}

func TestCodeEngine_Check_NoCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com")

	assert.ErrorIs(t, env.codes.Check(ctx, "a@x.com", "123456"), ErrCodeNotFound)
	assert.ErrorIs(t, env.codes.Check(ctx, "nobody@x.com", "123456"), ErrCodeNotFound)
}

func TestCodeEngine_Cooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com")

	_, err := env.codes.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	env.clock.Advance(59 * time.Second)
	_, err = env.codes.Issue(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrCooldown)
	wait, ok := RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, time.Second, wait)

	// Ровно через 60 секунд запрос разрешен
	env.clock.Advance(time.Second)
	_, err = env.codes.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 2, env.sender.calls)
}

func TestCodeEngine_NewCodeReplacesOld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com")

	_, err := env.codes.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	first := env.sender.lastCode("a@x.com")

	env.clock.Advance(DefaultCodeCooldown)
	_, err = env.codes.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	second := env.sender.lastCode("a@x.com")

	if first != second {
		assert.ErrorIs(t, env.codes.Check(ctx, "a@x.com", first), ErrCodeMismatch)
	}
	require.NoError(t, env.codes.Check(ctx, "a@x.com", second))
}

func TestCodeEngine_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{name: "at ttl still valid", elapsed: DefaultCodeTTL},
		{name: "just after ttl", elapsed: DefaultCodeTTL + time.Second, wantErr: ErrCodeExpired},
		{name: "long after ttl", elapsed: time.Hour, wantErr: ErrCodeExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.register(t, "a@x.com")

			_, err := env.codes.Issue(ctx, "a@x.com")
			require.NoError(t, err)
			code := env.sender.lastCode("a@x.com")

			env.clock.Advance(tt.elapsed)
			err = env.codes.Check(ctx, "a@x.com", code)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)

			// Истекший код удален
			user, err := env.store.GetUserByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			assert.False(t, user.HasVerificationCode())
			assert.ErrorIs(t, env.codes.Check(ctx, "a@x.com", code), ErrCodeNotFound)
		})
	}
}

func TestCodeEngine_DeliveryFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com")

	env.sender.fail(errSMTP)
	_, err := env.codes.Issue(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, errSMTP)

	user, err := env.store.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, user.HasVerificationCode())
	assert.Nil(t, user.LastCodeRequestAt)

	// Cooldown не блокирует повторную попытку
	env.sender.fail(nil)
	_, err = env.codes.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, env.codes.Check(ctx, "a@x.com", env.sender.lastCode("a@x.com")))
}

func TestCodeEngine_DeliveryFailureKeepsPreviousCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com")

	_, err := env.codes.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	firstRequest := env.clock.Now()

	env.clock.Advance(2 * time.Minute)
	env.sender.fail(errSMTP)
	_, err = env.codes.Issue(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrDelivery)

	user, err := env.store.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.LastCodeRequestAt)
	assert.True(t, firstRequest.Equal(*user.LastCodeRequestAt))
}

func TestCodeEngine_Options(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com")

	engine := NewCodeEngine(env.store, env.sender, discardLogger(),
		WithCodeClock(env.clock.Now),
		WithCodeTTL(10*time.Second),
		WithCodeCooldown(5*time.Second))
	assert.Equal(t, 10*time.Second, engine.TTL())

	issued, err := engine.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(5*time.Second), issued.ResendAvailableAt)

	env.clock.Advance(11 * time.Second)
	assert.ErrorIs(t, engine.Check(ctx, "a@x.com", env.sender.lastCode("a@x.com")), ErrCodeExpired)
}
