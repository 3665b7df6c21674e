package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"curriculumhub/internal/auth"
	"curriculumhub/internal/config"
)

// opstoken 为诊断接口签发运维令牌
func main() {
	env := flag.String("env", "dev", "配置环境 dev/prod/test")
	subject := flag.String("subject", "operator", "令牌主体（运维人员标识）")
	ttl := flag.Duration("ttl", 12*time.Hour, "令牌有效期")
	flag.Parse()

	cfg, err := config.Load(*env, "")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	svc := auth.NewJWTService(cfg.Auth.OperatorSecret, cfg.Auth.Issuer)
	if svc == nil {
		log.Fatalf("未配置 auth.operator_secret（APP_AUTH_OPERATOR_SECRET），诊断接口当前不鉴权")
	}

	token, err := svc.IssueOperatorToken(strings.TrimSpace(*subject), *ttl)
	if err != nil {
		log.Fatalf("签发令牌失败: %v", err)
	}
	fmt.Println(token)
}
