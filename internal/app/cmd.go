package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は定期リフレッシュとセッションクリーンアップを行うワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandRefresh は全企業のリフレッシュを1回実行して終了することを示す。
	CommandRefresh Command = "refresh"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "refresh":
		return CommandRefresh
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// MigrateAction はmigrateサブコマンドの操作を表す。
type MigrateAction struct {
	Name  string // up / down / version
	Steps int    // downで戻すステップ数
}

// ParseMigrateArgs はmigrate以降の引数を解析する。
// 引数なしはup、downのステップ数省略時は1とする。
func ParseMigrateArgs(args []string) (MigrateAction, error) {
	if len(args) == 0 {
		return MigrateAction{Name: "up"}, nil
	}

	switch args[0] {
	case "up", "version":
		if len(args) > 1 {
			return MigrateAction{}, fmt.Errorf("migrate %s takes no arguments", args[0])
		}
		return MigrateAction{Name: args[0]}, nil
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return MigrateAction{}, fmt.Errorf("invalid migrate down steps: %q", args[1])
			}
			steps = n
		}
		return MigrateAction{Name: "down", Steps: steps}, nil
	default:
		return MigrateAction{}, fmt.Errorf("unknown migrate action: %q", args[0])
	}
}
