package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supportdesk/supportbot/engine/domain"
)

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "参照する情報が見つかりませんでした", FormatResults(nil))

	got := FormatResults([]domain.SearchResult{
		{Content: "質問: A\n回答: B", Source: "FAQ: A", Score: 0.876},
		{Content: "本文", Source: "マニュアル", Score: 0.5},
	})
	want := "\n結果 1（類似度: 0.88）\nソース: FAQ: A\n内容: 質問: A\n回答: B\n" +
		"\n" +
		"\n結果 2（類似度: 0.50）\nソース: マニュアル\n内容: 本文\n"
	assert.Equal(t, want, got)
}

func TestBuildPrompt_TemplateSelection(t *testing.T) {
	faq := faqResult(0.9)
	manual := manualResult(0.8)

	tests := []struct {
		name    string
		results []domain.SearchResult
		want    Template
		marker  string
	}{
		{"faq only", []domain.SearchResult{faq}, TemplateFAQ, "関連する検索結果："},
		{"manual only", []domain.SearchResult{manual}, TemplateManual, "参照するマニュアル情報："},
		{"both", []domain.SearchResult{manual, faq}, TemplateMulti, "FAQ情報："},
		{"none", nil, TemplateNoResults, "見つけることができませんでした"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, prompt := BuildPrompt("VPNに接続できない", tt.results)
			assert.Equal(t, tt.want, tmpl)
			assert.Contains(t, prompt, tt.marker)
			assert.Contains(t, prompt, "VPNに接続できない")
			assert.NotContains(t, prompt, "{question}")
		})
	}
}

func TestBuildPrompt_MultiSourceSplitsSections(t *testing.T) {
	_, prompt := BuildPrompt("q", []domain.SearchResult{manualResult(0.8), faqResult(0.9)})

	faqAt := strings.Index(prompt, "FAQ情報：")
	manualAt := strings.Index(prompt, "マニュアル情報：")
	assert.Greater(t, manualAt, faqAt)

	faqSection := prompt[faqAt:manualAt]
	assert.Contains(t, faqSection, "ソース: FAQ: Q")
	assert.NotContains(t, faqSection, "ソース: マニュアル")
	assert.Contains(t, prompt[manualAt:], "ソース: マニュアル - 手順")
}

func TestNoResultsPrompt(t *testing.T) {
	p := NoResultsPrompt("経費精算")
	assert.Contains(t, p, "「経費精算」に関する情報")
	assert.Contains(t, p, "内線1234")
}

func TestPartition_KeepsOrderAndDropsUntyped(t *testing.T) {
	in := []domain.SearchResult{faqResult(0.5), manualResult(0.9), {Content: "x"}, faqResult(0.7)}
	faq, manual := Partition(in)
	assert.Equal(t, []domain.SearchResult{in[0], in[3]}, faq)
	assert.Equal(t, []domain.SearchResult{in[1]}, manual)
}
