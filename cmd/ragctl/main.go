// Package main 是运维命令行工具 ragctl 的入口。
package main

import (
	"fmt"
	"os"

	"rag-chatbot-go/cmd/ragctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
