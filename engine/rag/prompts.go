package rag

import (
	"fmt"
	"strings"

	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/pkg/fn"
)

// Template names the prompt shape chosen for a set of results.
type Template string

const (
	TemplateFAQ       Template = "faq"
	TemplateManual    Template = "manual"
	TemplateMulti     Template = "multi_source"
	TemplateNoResults Template = "no_results"
)

// SystemRole is the persona sent as the system message.
const SystemRole = `
あなたは会社内のサポートボットです。
以下の指針に従ってください：

基本姿勢：
- 会社内の従業員を助ける親切なアシスタント
- 正確で分かりやすい回答を心がける
- 分からないことは分からないと正直に答える

回答スタイル：
- 丁寧で親しみやすい口調
- 簡潔で要点を整理した内容
- 必要に応じて手順を番号付きで説明

注意点：
- 推測による回答は避ける
- 検索結果にない情報は「検索結果にありません」と伝える
- 機密情報に関わる質問には回答を控える
`

const faqTemplate = `
以下の質問に対して、検索結果の情報を基に回答してください。

ユーザーの質問：
{question}

関連する検索結果：
{search_results}

回答の要件：
1. 質問に直接答える内容を最初に書いてください
2. 上記の検索結果がある場合はそれらの情報を参考にしてください
3. 検索結果にない情報は推測せず、「情報が見つかりません」と伝えてください
4. 機密性の高い内容については適切に配慮してください

回答をお願いします：
`

const manualTemplate = `
以下のマニュアル検索結果を基に、ユーザーの質問に回答してください。

ユーザーの質問：
{question}

参照するマニュアル情報：
{search_results}

回答の要件：
1. マニュアルの内容を整理して説明してください
2. 手順がある場合は番号付きで整理してください
3. 重要なポイントがあれば強調してください
4. 不明な点があれば担当者への問い合わせを案内してください

回答をお願いします：
`

const noResultsTemplate = `
申し訳ございませんが、「{question}」に関する情報をFAQやマニュアルから見つけることができませんでした。

以下の対応をお勧めします：

1. 質問の表現を変えて再度お試しください
2. より具体的なキーワードで検索してください
3. 直接担当者にお問い合わせください：
   - 人事関連：内線1234
   - ITサポート：内線5678
   - 総務関連：内線9012

引き続きお困りのことがございましたら、お気軽にお声がけください。
`

const multiSourceTemplate = `
以下の質問についてFAQとマニュアルの両方から関連情報が見つかりました。

ユーザーの質問：
{question}

FAQ情報：
{faq_results}

マニュアル情報：
{manual_results}

回答の要件：
1. FAQとマニュアルの情報を総合して包括的に回答してください
2. 検索結果がある場合はそれらの詳細な情報を活用してください
3. 両方の情報を統合して、より包括的で有用な回答を作成してください

総合した回答をお願いします：
`

const noReferenceText = "参照する情報が見つかりませんでした"

// FormatResults renders results as numbered blocks for a prompt.
func FormatResults(results []domain.SearchResult) string {
	if len(results) == 0 {
		return noReferenceText
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("\n結果 %d（類似度: %.2f）\nソース: %s\n内容: %s\n", i+1, r.Score, r.Source, r.Content)
	}
	return strings.Join(blocks, "\n")
}

// Partition splits results by source kind, keeping their order.
func Partition(results []domain.SearchResult) (faq, manual []domain.SearchResult) {
	groups := fn.GroupBy(results, domain.SearchResult.Kind)
	return groups[domain.KindFAQ], groups[domain.KindManual]
}

// BuildPrompt selects the template from which sources are present and fills it.
func BuildPrompt(question string, results []domain.SearchResult) (Template, string) {
	faq, manual := Partition(results)
	switch {
	case len(faq) > 0 && len(manual) > 0:
		return TemplateMulti, fill(multiSourceTemplate,
			"{question}", question,
			"{faq_results}", FormatResults(faq),
			"{manual_results}", FormatResults(manual))
	case len(faq) > 0:
		return TemplateFAQ, fill(faqTemplate, "{question}", question, "{search_results}", FormatResults(faq))
	case len(manual) > 0:
		return TemplateManual, fill(manualTemplate, "{question}", question, "{search_results}", FormatResults(manual))
	default:
		return TemplateNoResults, NoResultsPrompt(question)
	}
}

// NoResultsPrompt fills the no-results template.
func NoResultsPrompt(question string) string {
	return fill(noResultsTemplate, "{question}", question)
}

func fill(tmpl string, oldnew ...string) string {
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}
