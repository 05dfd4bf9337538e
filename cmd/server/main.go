// cmd/server/main.go
package main

import (
	"log"
	"os"

	"github.com/jubenlab/jubengen/internal/app"
	"github.com/jubenlab/jubengen/internal/config"
)

func main() {
	cfg, err := config.MaybeLoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}

	if err := a.Run(); err != nil {
		log.Fatalf("服务器运行失败: %v", err)
	}
}
