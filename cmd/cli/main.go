package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"classroom-agent/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("classroom-agent cli 0.1.0")
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runServerStart()
		} else {
			fmt.Fprintf(os.Stderr, "Usage: finder server start\n")
			os.Exit(1)
		}
	case "chat":
		runChat()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: finder <command> [args]")
	fmt.Println("  version       - 显示版本")
	fmt.Println("  health        - 服务健康检查")
	fmt.Println("  config        - 显示配置概要")
	fmt.Println("  server start  - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  chat          - 交互式找教室对话（quit/exit 退出）")
}

func runHealth() {
	status, err := getHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(status)
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg != nil {
		fmt.Printf("api.port=%d\n", cfg.API.Port)
		fmt.Printf("model.name=%s\n", cfg.Model.Name)
		fmt.Printf("backend.base_url=%s\n", cfg.Backend.BaseURL)
	}
}

func runServerStart() {
	c := exec.Command("go", "run", "./cmd/api")
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server start: %v\n", err)
		os.Exit(1)
	}
}

func runChat() {
	fmt.Println("Classroom Finder（quit/exit 退出）")
	chatLoop(os.Stdin, os.Stdout, postChat)
}

// chatLoop 交互式对话循环：累积历史、跳过空行、quit/exit 退出。
// send 可注入，便于测试
func chatLoop(in io.Reader, out io.Writer, send func([]chatMessage, string) (*chatResult, error)) {
	reader := bufio.NewReader(in)
	var history []chatMessage
	sessionID := ""
	for {
		fmt.Fprint(out, "User: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		msg := strings.TrimSpace(line)
		if msg == "" {
			continue
		}
		if msg == "exit" || msg == "quit" {
			break
		}
		history = append(history, chatMessage{Role: "user", Content: msg})
		res, err := send(history, sessionID)
		if err != nil {
			fmt.Fprintf(out, "请求失败: %v\n", err)
			history = history[:len(history)-1]
			continue
		}
		sessionID = res.SessionID
		history = append(history, chatMessage{Role: "assistant", Content: res.Message})
		fmt.Fprintf(out, "Agent: %s\n", res.Message)
	}
}
