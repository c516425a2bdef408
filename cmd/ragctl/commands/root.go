// Package commands 定义 ragctl 的子命令。
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rag-chatbot-go/internal/app"
	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/pkg/log"
)

var configPath string

// NewRootCmd 创建根命令。
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate the RAG chatbot retrieval core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Path to config.yaml")

	root.AddCommand(NewSearchCmd())
	root.AddCommand(NewReindexCmd())
	root.AddCommand(NewCleanupCmd())
	root.AddCommand(NewStatsCmd())
	root.AddCommand(NewTokenCmd())
	return root
}

// Execute 运行根命令。
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	log.Init(cfg.Log.Level, "console", "")
	return cfg, nil
}

// withApp 加载配置并组装组件后执行 fn。
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func organizationFlag(cmd *cobra.Command) *uint {
	if !cmd.Flags().Changed("org") {
		return nil
	}
	org, _ := cmd.Flags().GetUint("org")
	return &org
}
