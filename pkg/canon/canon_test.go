package canon

import (
	"encoding/json"
	"testing"
)

func TestCanonicalizeDay(t *testing.T) {
	items := []TemplateItem{
		{Start: "17:00", End: "21:00", Demand: 2},
		{Start: "8", End: "12.00", Demand: -1, NeedsExperienced: true},
		{Start: "bad", End: "12:00", Demand: 1},
		{Start: "14:00", End: "14:00", Demand: 1},
	}

	got := CanonicalizeDay(items, "2026-03-02", "门店A")
	if len(got) != 2 {
		t.Fatalf("应保留2条有效条目, 实际 %d", len(got))
	}
	// 排序后 08:00 在前
	if got[0].Start != "08:00" || got[0].End != "12:00" {
		t.Errorf("首条应为 08:00-12:00, 实际 %s-%s", got[0].Start, got[0].End)
	}
	if got[0].Demand != 0 {
		t.Errorf("负需求应钳为0, 实际 %d", got[0].Demand)
	}
	if got[0].Date != "2026-03-02" || got[0].Location != "门店A" {
		t.Errorf("date/location 应被强制填充: %+v", got[0])
	}
	if got[1].Start != "17:00" {
		t.Errorf("次条应为 17:00, 实际 %s", got[1].Start)
	}
}

func TestContentHash_OrderStable(t *testing.T) {
	a := CanonicalizeDay([]TemplateItem{
		{Start: "08:00", End: "12:00", Demand: 2},
		{Start: "17:00", End: "21:00", Demand: 3, NeedsExperienced: true},
	}, "2026-03-02", "")
	b := CanonicalizeDay([]TemplateItem{
		{Start: "17:00", End: "21:00", Demand: 3, NeedsExperienced: true},
		{Start: "8.0", End: "12", Demand: 2},
	}, "2026-03-02", "")

	if ContentHash(a) != ContentHash(b) {
		t.Error("条目顺序与写法差异不应改变内容哈希")
	}
}

func TestContentHash_SensitiveToContent(t *testing.T) {
	a := CanonicalizeDay([]TemplateItem{{Start: "08:00", End: "12:00", Demand: 2}}, "2026-03-02", "")
	b := CanonicalizeDay([]TemplateItem{{Start: "08:00", End: "12:00", Demand: 3}}, "2026-03-02", "")
	if ContentHash(a) == ContentHash(b) {
		t.Error("需求人数不同时哈希应不同")
	}

	c := CanonicalizeDay([]TemplateItem{{Start: "08:00", End: "12:00", Demand: 2}}, "2026-03-03", "")
	if ContentHash(a) == ContentHash(c) {
		t.Error("日期不同时哈希应不同")
	}
}

func TestDayHash_DistinguishesLocation(t *testing.T) {
	items := CanonicalizeDay([]TemplateItem{{Start: "08:00", End: "12:00", Demand: 1}}, "2026-03-02", "A")
	h1 := DayHash("2026-03-02", "A", items)
	h2 := DayHash("2026-03-02", "B", items)
	if h1 == h2 {
		t.Error("地点不同的日哈希应不同")
	}
	if len(h1) != 64 {
		t.Errorf("日哈希应为64位十六进制, 实际长度 %d", len(h1))
	}
}

func TestGroupByDayLocation(t *testing.T) {
	items := []DayItem{
		{Date: "2026-03-02", Location: "A", Start: "08:00", End: "12:00", Demand: 1},
		{Date: "2026-03-02", Location: "B", Start: "08:00", End: "12:00", Demand: 1},
		{Date: "2026-03-03", Location: "A", Start: "08:00", End: "12:00", Demand: 1},
		{Date: "", Location: "A", Start: "08:00", End: "12:00", Demand: 1},
	}
	groups := GroupByDayLocation(items)
	if len(groups) != 3 {
		t.Fatalf("应分为3组, 实际 %d", len(groups))
	}
	if len(groups[DayLocation{Date: "2026-03-02", Location: "A"}]) != 1 {
		t.Error("(2026-03-02, A) 组应有1条")
	}
}

func TestCoerceSlots(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected int
	}{
		{"空输入", ``, 0},
		{"null", `null`, 0},
		{"单个对象", `{"start":"09:00","end":"17:00"}`, 1},
		{"对象数组", `[{"start":"09:00","end":"12:00"},{"start":"14:00","end":"18:00"}]`, 2},
		{"含无效时段", `[{"start":"09:00","end":"12:00"},{"start":"18:00","end":"14:00"}]`, 1},
		{"不可解析", `"garbage"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceSlots(json.RawMessage(tt.raw))
			if len(got) != tt.expected {
				t.Errorf("CoerceSlots(%s) 应有 %d 个时段, 实际 %d", tt.raw, tt.expected, len(got))
			}
		})
	}
}

func TestValidateSlots_Normalizes(t *testing.T) {
	got := ValidateSlots([]Slot{{Start: "9", End: "17.30"}})
	if len(got) != 1 {
		t.Fatalf("应保留1个时段, 实际 %d", len(got))
	}
	if got[0].Start != "09:00" || got[0].End != "17:30" {
		t.Errorf("时段应归一化为 09:00-17:30, 实际 %s-%s", got[0].Start, got[0].End)
	}
}

func TestStrip(t *testing.T) {
	day := CanonicalizeDay([]TemplateItem{{Start: "08:00", End: "12:00", Demand: 2}}, "2026-03-02", "A")
	tpl := Strip(day)
	if len(tpl) != 1 || tpl[0].Start != "08:00" || tpl[0].Demand != 2 {
		t.Errorf("Strip 结果错误: %+v", tpl)
	}
}
