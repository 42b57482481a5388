package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	nlog "github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/rule"
)

const (
	tagIDAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// TagIDLength 生成的标签 ID 长度.
	TagIDLength = rule.MinTagLength
	// SecretLength 生成的管理密钥长度.
	SecretLength = 30
)

// Authenticator 负责标签密钥的哈希与校验.
type Authenticator struct {
	repo   repository.Repository
	cost   int
	dummy  []byte // 标签不存在时用于比较，使两种失败耗时一致
	logger zerolog.Logger
}

// NewAuthenticator 创建鉴权器.
func NewAuthenticator(repo repository.Repository, cfg configs.SecurityConfig) *Authenticator {
	cost := cfg.SecretHashCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("tagdrop-dummy-secret"), cost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt dummy hash: %v", err))
	}

	return &Authenticator{repo: repo, cost: cost, dummy: dummy, logger: nlog.Component("access")}
}

// HashSecret 对明文密钥做单向哈希.
func (a *Authenticator) HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), a.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}

	return string(h), nil
}

// Authenticate 校验标签密钥. 标签不存在与密钥错误都返回 false，调用方无法区分.
func (a *Authenticator) Authenticate(ctx context.Context, tagID, secret string) bool {
	_, ok := a.authenticate(ctx, tagID, secret)

	return ok
}

// authenticate 校验成功时同时返回标签.
func (a *Authenticator) authenticate(ctx context.Context, tagID, secret string) (*model.Tag, bool) {
	hash := a.dummy

	var tag *model.Tag

	if rule.IsTagID(tagID) {
		t, err := a.repo.GetTag(ctx, tagID)

		switch {
		case err == nil:
			tag = t
			hash = []byte(t.SecretHash)
		case !errors.Is(err, shared.ErrNotFound):
			a.logger.Warn().Err(err).Str("tag", tagID).Msg("tag lookup failed during authentication")
		}
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(secret)) != nil || tag == nil || secret == "" {
		return nil, false
	}

	return tag, true
}

// AuthorizeWrite 只读标签拒绝上传.
func AuthorizeWrite(tag *model.Tag) error {
	if !tag.Writable() {
		return fmt.Errorf("%w: tag %s is read-only", shared.ErrForbidden, tag.ID)
	}

	return nil
}

// GenerateTagID 生成随机标签 ID（小写字母与数字）.
func GenerateTagID() (string, error) {
	return randomString(tagIDAlphabet, TagIDLength)
}

// GenerateSecret 生成随机管理密钥（大小写字母与数字）.
func GenerateSecret() (string, error) {
	return randomString(secretAlphabet, SecretLength)
}

func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))

	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}

		out[i] = alphabet[idx.Int64()]
	}

	return string(out), nil
}
