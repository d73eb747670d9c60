// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"
)

const version = "callreplay cli 0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	if len(argv) < 1 {
		printUsage(stdout)
		return 0
	}
	cmd := argv[0]
	args := argv[1:]
	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	case "config":
		return runConfig(stdout, stderr)
	case "new-session":
		return runNewSession(stdout)
	case "inspect":
		if len(args) < 1 {
			fmt.Fprintf(stderr, "Usage: callreplay inspect <file>\n")
			return 1
		}
		return runInspect(args[0], stdout, stderr)
	case "push":
		if len(args) < 1 {
			fmt.Fprintf(stderr, "Usage: callreplay push <file> [name]\n")
			return 1
		}
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		return runPush(args[0], name, stdout, stderr)
	case "pull":
		if len(args) < 2 {
			fmt.Fprintf(stderr, "Usage: callreplay pull <name> <file>\n")
			return 1
		}
		return runPull(args[0], args[1], stdout, stderr)
	case "load":
		if len(args) < 2 {
			fmt.Fprintf(stderr, "Usage: callreplay load <session_id> <file>\n")
			return 1
		}
		return runLoad(args[0], args[1], stdout, stderr)
	case "rewind":
		if len(args) < 1 {
			fmt.Fprintf(stderr, "Usage: callreplay rewind <session_id>\n")
			return 1
		}
		return runRewind(args[0], stdout, stderr)
	case "copy":
		if len(args) < 2 {
			fmt.Fprintf(stderr, "Usage: callreplay copy <from_session> <to_session>\n")
			return 1
		}
		return runCopy(args[0], args[1], stdout, stderr)
	default:
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: callreplay <command> [args]")
	fmt.Fprintln(w, "  version                 - 显示版本")
	fmt.Fprintln(w, "  config                  - 显示配置概要")
	fmt.Fprintln(w, "  new-session             - 生成新的 session id")
	fmt.Fprintln(w, "  inspect <file>          - 按 lane 汇总 session 文件并检查 entry/exit 配对")
	fmt.Fprintln(w, "  push <file> [name]      - 上传 session 文件到归档")
	fmt.Fprintln(w, "  pull <name> <file>      - 从归档下载 session 文件")
	fmt.Fprintln(w, "  load <session_id> <file> - 将 session 文件导入配置的存储（redis/postgres/sqlite/badger）")
	fmt.Fprintln(w, "  rewind <session_id>     - 重置已消费的条目，可再次重放")
	fmt.Fprintln(w, "  copy <from> <to>        - 复制 redis 中的 session")
	fmt.Fprintln(w, "配置文件路径取自环境变量 CALLREPLAY_CONFIG，未设置时使用默认值与环境变量")
}
