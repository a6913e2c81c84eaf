package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/mingle-chat/mingle-go/internal/chat"
	"github.com/mingle-chat/mingle-go/pkg/util/retry"
)

// minglecli 是一个终端聊天客户端：
// 读 stdin 按行发给服务端，把服务端的行渲染到 stdout。
func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "server address (host:port)")
	timeout := flag.Duration("connect-timeout", 10*time.Second, "total time to keep retrying the initial connection")
	flag.Parse()

	conn, err := dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	done := make(chan struct{})

	// 服务端 -> 终端。
	go func() {
		defer close(done)
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			render(strings.TrimRight(line, "\r\n"))
		}
	}()

	// 终端 -> 服务端。
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := sc.Text()
			if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
				return
			}
			if line == "/exit" {
				// 服务端会关闭连接，读协程随后退出。
				return
			}
		}
		// stdin 关闭（Ctrl-D）时礼貌地退出聊天。
		_, _ = fmt.Fprintln(conn, "/exit")
	}()

	<-done
	fmt.Println("connection closed")
}

// dial 带指数退避地重试建连，方便在服务端尚未就绪时先启动客户端。
func dial(addr string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var conn net.Conn
	err := retry.Do(ctx, func() error {
		var err error
		conn, err = net.DialTimeout("tcp", addr, 3*time.Second)
		return err
	}, retry.Attempts(10), retry.Sleep(500*time.Millisecond))
	return conn, err
}

// render 将服务端的一行输出翻译成对人友好的形式。
func render(line string) {
	switch {
	case line == chat.NoticeConnected:
		fmt.Println("connected, waiting for a partner...")
	case line == chat.NoticeChatFound:
		fmt.Println("partner found, say hi!")
	case line == chat.NoticePartnerLeft:
		fmt.Println("partner left, waiting for a new partner...")
	case line == chat.NoticeNoPartner:
		fmt.Println("no partner yet, hang tight...")
	case strings.HasPrefix(line, "[HELP] "):
		fmt.Println(strings.TrimPrefix(line, "[HELP] "))
	default:
		fmt.Printf("> %s\n", line)
	}
}
