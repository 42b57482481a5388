// Package rule 封装 go-playground/validator，结构体标签名为 "rule".
//
// 除内置规则外注册了两条领域规则：
//   - tagid: 标签 ID，10 到 128 个 ASCII 字母或数字
//   - filename: 文件名，只允许字母、数字与 . - _ % ( ) 空格，不得包含 ".."
package rule

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	MinTagLength      = 10
	MaxTagLength      = 128 // 与 tags.id 列宽一致
	MaxFilenameLength = 255
)

var (
	tagPattern      = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	filenamePattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_%() ]+$`)

	engine = sync.OnceValue(newEngine)
)

// newEngine 复用 gin 的 validator 实例，使 ShouldBind 与 ValidateStruct 行为一致.
func newEngine() *validator.Validate {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok || v == nil {
		v = validator.New()
	}

	v.SetTagName("rule")

	for tag, fn := range map[string]validator.Func{
		"tagid":    func(fl validator.FieldLevel) bool { return IsTagID(fl.Field().String()) },
		"filename": func(fl validator.FieldLevel) bool { return IsFilename(fl.Field().String()) },
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}

	return v
}

// Engine 返回共享的 validator.
func Engine() *validator.Validate {
	return engine()
}

// FieldError 一个字段未通过的规则.
type FieldError struct {
	Field string // 去掉顶层类型名的路径，例如 DB.Type
	Rule  string
	Param string
}

func (f FieldError) String() string {
	if f.Param == "" {
		return f.Field + " " + f.Rule
	}

	return f.Field + " " + f.Rule + "=" + f.Param
}

// Error 汇总所有未通过的字段.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateStruct 校验结构体，规则不满足时返回 *Error.
func ValidateStruct(s any) error {
	return describe(Engine().Struct(s))
}

// ValidateVar 校验单个值，例如 ValidateVar(name, "filename").
func ValidateVar(field any, tag string) error {
	return describe(Engine().Var(field, tag))
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}

		out.Fields = append(out.Fields, FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()})
	}

	return out
}

// IsTagID 标签 ID 同时用作目录名，只接受 ASCII 字母与数字.
func IsTagID(s string) bool {
	return len(s) >= MinTagLength && len(s) <= MaxTagLength && tagPattern.MatchString(s)
}

// IsFilename 拒绝空串、路径分隔符与 "..".
func IsFilename(s string) bool {
	return s != "" && len(s) <= MaxFilenameLength &&
		!strings.Contains(s, "..") && filenamePattern.MatchString(s)
}
