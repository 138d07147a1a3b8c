package fusion

import (
	"strings"

	"github.com/supportdesk/supportbot/engine/domain"
)

var (
	faqKeywords = []string{
		"ログイン", "申請", "パスワード", "できない", "エラー",
		"アカウント", "ユーザー", "サインイン", "トラブル", "問題",
	}
	manualKeywords = []string{
		"手順", "方法", "設定", "操作", "画面",
		"ボタン", "メニュー", "機能", "使い方", "システム",
	}
)

// Classify picks a strategy by counting how many keywords of each set occur in
// the lower-cased query. Ties, including zero matches, are balanced.
func Classify(query string) domain.Strategy {
	q := strings.ToLower(query)
	faq, manual := countHits(q, faqKeywords), countHits(q, manualKeywords)
	switch {
	case faq > manual:
		return domain.StrategyFAQFocus
	case manual > faq:
		return domain.StrategyManualFocus
	default:
		return domain.StrategyBalanced
	}
}

func countHits(q string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(q, k) {
			n++
		}
	}
	return n
}
