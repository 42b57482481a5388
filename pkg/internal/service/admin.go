package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	nlog "github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/rule"
)

// TTLOption 某个过期策略应用到当前标签时的过期时间.
type TTLOption struct {
	Class     model.TTLClass `json:"class"`
	ExpiresAt *time.Time     `json:"expires_at"` // nil 表示永不过期
	Current   bool           `json:"current"`
}

// TagView 管理页面展示的标签配置.
type TagView struct {
	ID             string           `json:"id"`
	TTL            model.TTLClass   `json:"ttl"`
	Visibility     model.Visibility `json:"visibility"`
	Permission     model.Permission `json:"permission"`
	PreviewEnabled bool             `json:"preview_enabled"`
	RegisteredAt   time.Time        `json:"registered_at"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	Schedule       []TTLOption      `json:"schedule"`
}

// TagUpdate 标签配置的修改，nil 字段保持不变.
type TagUpdate struct {
	TTL            *string `json:"ttl"`
	Visibility     *string `json:"visibility" rule:"omitempty,oneof=private public"`
	Permission     *string `json:"permission" rule:"omitempty,oneof=ro rw readOnly readWrite"`
	PreviewEnabled *bool   `json:"preview_enabled"`
}

// Admin 需要管理密钥的标签操作.
type Admin struct {
	repo   repository.Repository
	auth   *Authenticator
	now    func() time.Time
	logger zerolog.Logger
}

// NewAdmin 创建标签管理服务.
func NewAdmin(repo repository.Repository, auth *Authenticator, now func() time.Time) *Admin {
	return &Admin{repo: repo, auth: auth, now: now, logger: nlog.Component("admin")}
}

func (a *Admin) authorize(ctx context.Context, tagID, secret string) (*model.Tag, error) {
	if err := validateTag(tagID); err != nil {
		return nil, err
	}

	tag, ok := a.auth.authenticate(ctx, tagID, secret)
	if !ok {
		return nil, fmt.Errorf("%w: bad secret for tag %s", shared.ErrForbidden, tagID)
	}

	return tag, nil
}

// View 返回标签配置与各策略对应的过期时间.
func (a *Admin) View(ctx context.Context, tagID, secret string) (*TagView, error) {
	tag, err := a.authorize(ctx, tagID, secret)
	if err != nil {
		return nil, err
	}

	return NewTagView(tag), nil
}

// Update 校验整个修改后一次性写入，任一字段非法时不做任何修改.
func (a *Admin) Update(ctx context.Context, tagID, secret string, upd TagUpdate) (*TagView, error) {
	tag, err := a.authorize(ctx, tagID, secret)
	if err != nil {
		return nil, err
	}

	next, err := upd.apply(*tag)
	if err != nil {
		return nil, err
	}

	if err := a.repo.UpsertTag(ctx, &next); err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("tag", tagID).
		Stringer("ttl", next.TTL).
		Str("visibility", string(next.Visibility)).
		Str("permission", string(next.Permission)).
		Bool("preview", next.PreviewEnabled).
		Msg("tag updated")

	return NewTagView(&next), nil
}

// Log 返回访问日志，按时间倒序.
func (a *Admin) Log(ctx context.Context, tagID, secret string, limit int) ([]model.AccessLog, error) {
	if _, err := a.authorize(ctx, tagID, secret); err != nil {
		return nil, err
	}

	return a.repo.ListLog(ctx, tagID, limit)
}

// createAttempts 生成的标签 ID 与已有标签冲突时的重试次数.
const createAttempts = 5

// Create 生成并注册一个带默认配置的新标签，返回管理视图与明文密钥.
func (a *Admin) Create(ctx context.Context) (*TagView, string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}

	hash, err := a.auth.HashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	for range createAttempts {
		id, err := GenerateTagID()
		if err != nil {
			return nil, "", err
		}

		tag := model.NewTag(id, hash, a.now())

		created, err := a.repo.RegisterTag(ctx, tag)
		if err != nil {
			return nil, "", err
		}

		if created {
			a.logger.Info().Str("tag", id).Msg("tag registered")

			return NewTagView(tag), secret, nil
		}
	}

	return nil, "", fmt.Errorf("register tag: %d id collisions", createAttempts)
}

func (u TagUpdate) apply(tag model.Tag) (model.Tag, error) {
	if err := rule.ValidateStruct(u); err != nil {
		return tag, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	if u.TTL != nil {
		ttl, err := model.ParseTTLClass(*u.TTL)
		if err != nil {
			return tag, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
		}

		tag.TTL = ttl
	}

	if u.Visibility != nil {
		tag.Visibility = model.Visibility(*u.Visibility)
	}

	if u.Permission != nil {
		switch *u.Permission {
		case "readOnly":
			tag.Permission = model.PermissionReadOnly
		case "readWrite":
			tag.Permission = model.PermissionReadWrite
		default:
			tag.Permission = model.Permission(*u.Permission)
		}
	}

	if u.PreviewEnabled != nil {
		tag.PreviewEnabled = *u.PreviewEnabled
	}

	return tag, nil
}

// NewTagView 构造管理视图.
func NewTagView(tag *model.Tag) *TagView {
	v := &TagView{
		ID:             tag.ID,
		TTL:            tag.TTL,
		Visibility:     tag.Visibility,
		Permission:     tag.Permission,
		PreviewEnabled: tag.PreviewEnabled,
		RegisteredAt:   tag.RegisteredAt,
	}

	if at, ok := tag.ExpiresAt(); ok {
		v.ExpiresAt = &at
	}

	for _, c := range model.TTLClasses() {
		opt := TTLOption{Class: c, Current: c == tag.TTL}
		if at, ok := c.ExpiresAt(tag.RegisteredAt); ok {
			opt.ExpiresAt = &at
		}

		v.Schedule = append(v.Schedule, opt)
	}

	return v
}
