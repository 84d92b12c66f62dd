package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Scanning %s for video bundles...": "%s の動画バンドルをスキャン中...",
		"Found %d bundles":                 "%d 件のバンドルが見つかりました",
		"Capturing thumbnails with %d workers": "%d ワーカーでサムネイルをキャプチャ中",
		"Batch completed: %d succeeded, %d skipped, %d failed": "バッチ完了: 成功 %d, スキップ %d, 失敗 %d",
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",

		// Scanner component
		"Skipping unreadable directory %s: %s": "読み取れないディレクトリ %s をスキップします: %s",
		"Skipping symlink cycle at %s":         "%s のシンボリックリンク循環をスキップします",

		// Session component
		"Opening %s":                    "%s を開いています",
		"Ready after %d ms":             "%d ms で準備完了",
		"Seeking to %s":                 "%s へシーク中",
		"Seek rejected, retrying at 0":  "シークが拒否されました。0 秒で再試行します",
		"Duration unknown, seeking to 0": "再生時間が不明なため 0 秒へシークします",

		// Capture component
		"Snapshot requested: %s":        "スナップショットを要求: %s",
		"Snapshot confirmed: %d bytes":  "スナップショット確認: %d バイト",
		"Replaced %s":                   "%s を置き換えました",
		"Mirrored snapshot to %s":       "スナップショットを %s にミラーしました",

		// Batch component
		"Processing %s (attempt %d/%d)": "%s を処理中 (試行 %d/%d)",
		"Retrying %s after %s":          "%s を再試行します: %s",
		"Completed %s in %d ms":         "%s が %d ms で完了しました",

		// Warnings
		"Snapshot not confirmed in time, giving up on %s": "スナップショットを時間内に確認できませんでした。%s を断念します",
		"Bundle %s skipped: %s": "バンドル %s をスキップしました: %s",

		// Errors
		"Failed to open %s: %s":    "%s のオープンに失敗しました: %s",
		"Failed to capture %s: %s": "%s のキャプチャに失敗しました: %s",
		"Failed to write %s: %s":   "%s の書き込みに失敗しました: %s",
	})
}
