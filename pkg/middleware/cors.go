package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/tagdrop/pkg/configs"
)

const corsMaxAge = 12 * time.Hour

// CORSMiddleware 允许浏览器直接上传与下载. 未配置 cors_origins 时放开所有来源，
// 标签与密钥走自定义头而非 cookie，因此不开启 AllowCredentials.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Range",
			"X-Tag", "X-Filename", "X-Secret", "Content-MD5", "X-Maintenance-Token", HeaderRequestID,
		},
		ExposeHeaders: []string{
			"X-Tag", "Content-Disposition", "Content-Length", "Accept-Ranges", "X-Archive-Files", HeaderRequestID,
		},
		AllowFiles: true,
		MaxAge:     corsMaxAge,
	}

	if len(cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSOrigins
		c.AllowWildcard = true
	}

	return cors.New(c)
}
