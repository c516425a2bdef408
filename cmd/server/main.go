// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rag-chatbot-go/internal/app"
	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/pkg/log"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("RAG_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 组装组件
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()
	application, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatal("初始化失败", err)
	}
	defer application.Close()

	// 4. 启动后台 Kafka 消费者
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		application.RunConsumer(rootCtx)
	}()

	// 5. 启动 HTTP 服务器
	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: application.Router(),
	}
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stop()
	<-consumerDone
	log.Info("服务已优雅关闭")
}
