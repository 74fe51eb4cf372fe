package pipeline

import (
	"bytes"
	"strings"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ppiankov/ubotrace/internal/model"
)

func TestMarkdown_NoOwners(t *testing.T) {
	r := NewRenderer(false)
	md := r.Markdown(&model.Report{
		Subject:   "空壳公司",
		Threshold: 25,
		DirectShareholders: []model.Holding{
			{Name: "X|Y公司", Percentage: 100},
		},
		UltimateOwnership: orderedmap.New[string, float64](),
		Omissions: []model.Omission{
			{Kind: model.OmissionUnresolvedEntity, Entity: "X|Y公司", Percentage: 100},
			{Kind: model.OmissionInvalidPercentage, Holder: "甲", Value: "n/a"},
			{Kind: model.OmissionCycle, Path: []string{"A", "B", "A"}, Percentage: 12.5},
		},
	})

	for _, want := range []string{
		"# Beneficial Ownership: 空壳公司",
		`| X\|Y公司 | entity | 100.00% |`,
		"_No natural person could be traced._",
		"## Beneficial Owners (≥ 25.00%)",
		"_None._",
		"unresolved: X|Y公司 has no recorded shareholders (100.00% dropped)",
		`invalid percentage for 甲: "n/a"`,
		"cycle: A → B → A (12.50% dropped)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Signals") {
		t.Error("signals section rendered without signals")
	}
	if strings.Contains(md, "Effective percentages multiply") {
		t.Error("footer rendered when disabled")
	}
}

func TestMarkdown_UltimateSortedHighestFirst(t *testing.T) {
	ultimate := orderedmap.New[string, float64]()
	ultimate.Set("王五", 10)
	ultimate.Set("张三", 60)
	ultimate.Set("李四", 30)

	md := NewRenderer(true).Markdown(&model.Report{Subject: "A公司", Threshold: 30, UltimateOwnership: ultimate})

	zhang := strings.Index(md, "| 张三 | 60.00% |")
	li := strings.Index(md, "| 李四 | 30.00% |")
	wang := strings.Index(md, "| 王五 | 10.00% |")
	if zhang < 0 || li < 0 || wang < 0 {
		t.Fatalf("ownership rows missing:\n%s", md)
	}
	if !(zhang < li && li < wang) {
		t.Errorf("expected descending order, got positions %d %d %d", zhang, li, wang)
	}
	if !strings.Contains(md, "Effective percentages multiply") {
		t.Error("expected footer")
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(true)
	r.SetOutput(&buf)

	r.RenderSummary(&model.Report{
		Subject:   "A公司",
		Threshold: 30,
		Signals:   []model.Signal{{Description: "no natural person reaches 30.00%"}},
	})

	out := buf.String()
	for _, want := range []string{"A公司", "Ultimate ownership: none traced", "Beneficial owners (≥ 30.00%): none", "! no natural person"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
}
