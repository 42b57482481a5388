package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/internal/model"
)

func TestTTLClassExpiresAt(t *testing.T) {
	reg := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		class model.TTLClass
		want  time.Duration
	}{
		{model.TTLImmediate, 0},
		{model.TTLOneWeek, 7 * 24 * time.Hour},
		{model.TTLOneMonth, 28 * 24 * time.Hour},
		{model.TTLSixMonths, 26 * 7 * 24 * time.Hour},
		{model.TTLOneYear, 52 * 7 * 24 * time.Hour},
	}

	for _, tc := range cases {
		at, ok := tc.class.ExpiresAt(reg)
		require.True(t, ok, tc.class.String())
		assert.Equal(t, reg.Add(tc.want), at, tc.class.String())
	}

	_, ok := model.TTLForever.ExpiresAt(reg)
	assert.False(t, ok)
}

func TestTagExpired(t *testing.T) {
	now := time.Now().UTC()

	tag := model.NewTag("abcdefghij", "hash", now)
	assert.Equal(t, model.TTLSixMonths, tag.TTL)
	assert.Equal(t, model.VisibilityPrivate, tag.Visibility)
	assert.True(t, tag.Writable())
	assert.True(t, tag.PreviewEnabled)
	assert.False(t, tag.Expired(now))

	tag.TTL = model.TTLImmediate
	assert.True(t, tag.Expired(tag.RegisteredAt))

	tag.TTL = model.TTLForever
	assert.False(t, tag.Expired(now.Add(100*365*24*time.Hour)))

	tag.Permission = model.PermissionReadOnly
	assert.False(t, tag.Writable())
}

func TestParseTTLClass(t *testing.T) {
	for i, name := range []string{"immediate", "oneWeek", "oneMonth", "sixMonths", "oneYear", "forever"} {
		c, err := model.ParseTTLClass(name)
		require.NoError(t, err)
		assert.Equal(t, model.TTLClass(i), c)
	}

	c, err := model.ParseTTLClass("4")
	require.NoError(t, err)
	assert.Equal(t, model.TTLOneYear, c)

	for _, bad := range []string{"", "6", "-1", "never"} {
		_, err := model.ParseTTLClass(bad)
		assert.Error(t, err, bad)
	}
}

func TestTTLClassJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		TTL model.TTLClass `json:"ttl"`
	}{model.TTLOneMonth})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ttl":"oneMonth"}`, string(b))

	var in struct {
		TTL model.TTLClass `json:"ttl"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"ttl":"forever"}`), &in))
	assert.Equal(t, model.TTLForever, in.TTL)
}

func TestAccessLogIDsAreOrdered(t *testing.T) {
	now := time.Now()
	a := model.NewAccessLog("abcdefghij", "a.txt", "127.0.0.1", model.DirectionUpload, now)
	b := model.NewAccessLog("abcdefghij", "a.txt", "127.0.0.1", model.DirectionDownload, now.Add(time.Second))

	assert.Len(t, a.ID, 26)
	assert.Less(t, a.ID, b.ID)
}

func TestFileBandwidth(t *testing.T) {
	f := model.File{Size: 1024, Downloads: 3, MimeType: "image/png"}
	assert.Equal(t, int64(3072), f.Bandwidth())
	assert.True(t, f.IsImage())
}
