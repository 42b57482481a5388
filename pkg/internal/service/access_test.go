package service_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	"github.com/yeisme/tagdrop/pkg/rule"
)

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	secret := e.upload(t, testTag, "a.txt", "a").Secret

	assert.True(t, e.svc.Auth.Authenticate(ctx, testTag, secret))
	assert.False(t, e.svc.Auth.Authenticate(ctx, testTag, secret+"x"))
	assert.False(t, e.svc.Auth.Authenticate(ctx, testTag, ""))
	assert.False(t, e.svc.Auth.Authenticate(ctx, "unknowntag", secret))
	assert.False(t, e.svc.Auth.Authenticate(ctx, "bad", secret))
}

func TestGenerateIdentifiers(t *testing.T) {
	seen := map[string]bool{}

	for range 50 {
		id, err := service.GenerateTagID()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{10}$`), id)
		assert.True(t, rule.IsTagID(id))
		assert.False(t, seen[id])

		seen[id] = true

		secret, err := service.GenerateSecret()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[a-zA-Z0-9]{30}$`), secret)
	}
}

func TestAuthorizeWrite(t *testing.T) {
	tag := model.NewTag(testTag, "", time.Now())
	require.NoError(t, service.AuthorizeWrite(tag))

	tag.Permission = model.PermissionReadOnly
	require.ErrorIs(t, service.AuthorizeWrite(tag), shared.ErrForbidden)
}

func TestAdminViewAndUpdate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	secret := e.upload(t, testTag, "a.txt", "a").Secret

	view, err := e.svc.Admin.View(ctx, testTag, secret)
	require.NoError(t, err)
	assert.Equal(t, model.TTLSixMonths, view.TTL)
	require.Len(t, view.Schedule, len(model.TTLClasses()))
	assert.Nil(t, view.Schedule[model.TTLForever].ExpiresAt)
	assert.True(t, view.Schedule[model.TTLSixMonths].Current)
	assert.Equal(t, view.RegisteredAt, *view.Schedule[model.TTLImmediate].ExpiresAt)

	_, err = e.svc.Admin.View(ctx, testTag, "wrong")
	require.ErrorIs(t, err, shared.ErrForbidden)

	ttl, vis, perm := "oneYear", "public", "readOnly"
	view, err = e.svc.Admin.Update(ctx, testTag, secret, service.TagUpdate{TTL: &ttl, Visibility: &vis, Permission: &perm})
	require.NoError(t, err)
	assert.Equal(t, model.TTLOneYear, view.TTL)
	assert.Equal(t, model.VisibilityPublic, view.Visibility)
	assert.Equal(t, model.PermissionReadOnly, view.Permission)

	// 任一字段非法时整体不生效
	bad, good := "everyone", "forever"
	_, err = e.svc.Admin.Update(ctx, testTag, secret, service.TagUpdate{TTL: &good, Visibility: &bad})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	badTTL := "decade"
	_, err = e.svc.Admin.Update(ctx, testTag, secret, service.TagUpdate{TTL: &badTTL})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	tag, err := e.repo.GetTag(ctx, testTag)
	require.NoError(t, err)
	assert.Equal(t, model.TTLOneYear, tag.TTL)
	assert.Equal(t, model.VisibilityPublic, tag.Visibility)
}

func TestAdminLog(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	secret := e.upload(t, testTag, "a.txt", "a").Secret

	e.clock.Advance(time.Minute)

	dl, err := e.svc.Catalog.OpenFile(ctx, testTag, "a.txt", "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, dl.Close())

	logs, err := e.svc.Admin.Log(ctx, testTag, secret, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.DirectionDownload, logs[0].Direction)
	assert.Equal(t, "10.0.0.1", logs[0].Client)
	assert.Equal(t, model.DirectionUpload, logs[1].Direction)

	_, err = e.svc.Admin.Log(ctx, testTag, "nope", 0)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAdminCreate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	view, secret, err := e.svc.Admin.Create(ctx)
	require.NoError(t, err)

	assert.True(t, rule.IsTagID(view.ID))
	assert.Equal(t, model.TTLSixMonths, view.TTL)
	assert.True(t, e.svc.Auth.Authenticate(ctx, view.ID, secret))

	other, _, err := e.svc.Admin.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, view.ID, other.ID)
}
