package timer

import (
	"fmt"

	"github.com/hitoshi/timetrackr/internal/model"
)

// Command はユーザー操作を表す明示的なメッセージ。
// 各操作（開始・停止・手動追記・ノート編集）はコマンド値としてディスパッチされ、
// 描画レイヤーやイベント配線から切り離される。
type Command interface {
	isCommand()
}

// StartCommand はタイマー開始コマンド。
type StartCommand struct {
	CategoryID string
}

// StopCommand はタイマー停止コマンド。
// Noteがnilでない場合、クローズしたセッションへノートを付与する。
type StopCommand struct {
	Note *string
}

// AddManualCommand は手動後付けコマンド。
type AddManualCommand struct {
	CategoryID string
	Date       string // YYYY-MM-DD
	Hours      int
	Minutes    int
}

// EditNoteCommand はノート編集コマンド。
type EditNoteCommand struct {
	CategoryID string
	SessionID  string
	Note       string
}

func (StartCommand) isCommand()     {}
func (StopCommand) isCommand()      {}
func (AddManualCommand) isCommand() {}
func (EditNoteCommand) isCommand()  {}

// Result はコマンド実行の結果。
// Sessionは開始・停止・手動追記で作成またはクローズされたセッション（コピー）。
// 照合失敗を伴う停止などSessionがnilのまま成功するコマンドもある。
type Result struct {
	Session *model.Session
}

// Dispatch はコマンドを対応するサービス操作へ振り分ける。
func (s *Service) Dispatch(st *UserState, cmd Command) (*Result, error) {
	switch c := cmd.(type) {
	case StartCommand:
		session, err := s.Start(st, c.CategoryID)
		if err != nil {
			return nil, err
		}
		return &Result{Session: session}, nil
	case StopCommand:
		session, err := s.Stop(st, c.Note)
		if err != nil {
			return nil, err
		}
		return &Result{Session: session}, nil
	case AddManualCommand:
		session, err := s.AddManualSession(st, c.CategoryID, c.Date, c.Hours, c.Minutes)
		if err != nil {
			return nil, err
		}
		return &Result{Session: session}, nil
	case EditNoteCommand:
		s.EditNote(st, c.CategoryID, c.SessionID, c.Note)
		return &Result{}, nil
	default:
		return nil, fmt.Errorf("unknown command type %T", cmd)
	}
}
