package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/sandrogeco/centrafari2.1/internal/testutil"
	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

func main() {
	host := flag.String("host", "localhost:25800", "服务器地址")
	count := flag.Int("count", 10, "发送行数")
	interval := flag.Duration("interval", 0, "发送间隔")
	command := flag.Bool("command", false, "发送命令行而不是遥测行")
	idle := flag.Bool("idle", false, "每行之间插入保活行")
	flag.Parse()

	conn, err := net.Dial("tcp", *host)
	if err != nil {
		log.Fatalf("连接失败: %v", err)
	}
	defer conn.Close()

	fmt.Printf("已连接到: %s\n", *host)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < *count; i++ {
		line := testutil.RandomTelemetry(rng)
		if *command {
			line = testutil.CommandLine
		}

		// 发送数据
		n, err := fmt.Fprintf(conn, "%s\n", line)
		if err != nil {
			log.Printf("发送失败: %v", err)
			break
		}
		fmt.Printf("[%d] 发送 %d 字节: %s\n", i+1, n, line)

		if *idle {
			if _, err := fmt.Fprintf(conn, "%s\n", protocol.IdleLine); err != nil {
				log.Printf("发送失败: %v", err)
				break
			}
		}

		if *interval > 0 {
			time.Sleep(*interval)
		}
	}

	fmt.Println("发送完成")
}
