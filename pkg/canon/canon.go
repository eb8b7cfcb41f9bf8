// Package canon 提供需求条目的规范化与内容寻址哈希
//
// 两种规范形式：
//   - 日形式：带 date/location 的条目，按 (date, location) 计算 day hash
//   - 模板形式：仅 start/end/demand/needs_experienced 的每周默认条目
//
// 哈希为 SHA-256，输入是按键名字典序排列、无多余空白的 UTF-8 JSON。
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/paiban/banbiao/pkg/timeslot"
)

// Slot 可用时段
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TemplateItem 模板形式的需求条目（每周默认）
type TemplateItem struct {
	Start            string `json:"start"`
	End              string `json:"end"`
	Demand           int    `json:"demand"`
	NeedsExperienced bool   `json:"needs_experienced"`
}

// DayItem 日形式的需求条目
type DayItem struct {
	Date             string `json:"date"`
	Location         string `json:"location"`
	Start            string `json:"start"`
	End              string `json:"end"`
	Demand           int    `json:"demand"`
	NeedsExperienced bool   `json:"needs_experienced"`
}

// DayLocation (date, location) 分组键
type DayLocation struct {
	Date     string
	Location string
}

// CanonicalizeDay 将条目规范化为日形式
// 归一化 start/end，丢弃无效区间，强制 date/location，并按
// (start, end, demand, needs_experienced) 升序排序。
func CanonicalizeDay(items []TemplateItem, date, location string) []DayItem {
	out := make([]DayItem, 0, len(items))
	for _, it := range items {
		start := timeslot.NormHHMM(it.Start)
		end := timeslot.NormHHMM(it.End)
		if start == "" || end == "" {
			continue
		}
		s, err1 := timeslot.ToMinutes(start)
		e, err2 := timeslot.ToMinutes(end)
		if err1 != nil || err2 != nil || !timeslot.ValidInterval(s, e) {
			continue
		}
		dmd := it.Demand
		if dmd < 0 {
			dmd = 0
		}
		out = append(out, DayItem{
			Date:             date,
			Location:         location,
			Start:            start,
			End:              end,
			Demand:           dmd,
			NeedsExperienced: it.NeedsExperienced,
		})
	}
	sortDayItems(out)
	return out
}

// CanonicalizeTemplate 将条目规范化为模板形式
func CanonicalizeTemplate(items []TemplateItem) []TemplateItem {
	out := make([]TemplateItem, 0, len(items))
	for _, it := range items {
		start := timeslot.NormHHMM(it.Start)
		end := timeslot.NormHHMM(it.End)
		if start == "" || end == "" {
			continue
		}
		s, err1 := timeslot.ToMinutes(start)
		e, err2 := timeslot.ToMinutes(end)
		if err1 != nil || err2 != nil || !timeslot.ValidInterval(s, e) {
			continue
		}
		dmd := it.Demand
		if dmd < 0 {
			dmd = 0
		}
		out = append(out, TemplateItem{
			Start:            start,
			End:              end,
			Demand:           dmd,
			NeedsExperienced: it.NeedsExperienced,
		})
	}
	sortTemplateItems(out)
	return out
}

// Strip 去掉日形式条目的 date/location，得到模板形式
func Strip(items []DayItem) []TemplateItem {
	out := make([]TemplateItem, 0, len(items))
	for _, it := range items {
		out = append(out, TemplateItem{
			Start:            it.Start,
			End:              it.End,
			Demand:           it.Demand,
			NeedsExperienced: it.NeedsExperienced,
		})
	}
	return out
}

// GroupByDayLocation 按 (date, location) 分组
func GroupByDayLocation(items []DayItem) map[DayLocation][]DayItem {
	mp := make(map[DayLocation][]DayItem)
	for _, it := range items {
		if it.Date == "" {
			continue
		}
		key := DayLocation{Date: it.Date, Location: it.Location}
		mp[key] = append(mp[key], it)
	}
	return mp
}

// HashPayload 计算任意对象的规范 JSON SHA-256，输出小写十六进制
func HashPayload(v interface{}) string {
	b, err := canonicalJSON(v)
	if err != nil {
		b = []byte("null")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ContentHash 计算整个日形式载荷的内容哈希
func ContentHash(items []DayItem) string {
	maps := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		maps = append(maps, dayItemMap(it))
	}
	return HashPayload(maps)
}

// DayHash 计算单个 (date, location) 的日哈希
// items 应当已经是规范化且排序后的日形式条目。
func DayHash(date, location string, items []DayItem) string {
	maps := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		maps = append(maps, dayItemMap(it))
	}
	return HashPayload(map[string]interface{}{
		"date":     date,
		"location": location,
		"items":    maps,
	})
}

// dayItemMap 转为 map 以便 JSON 按键名排序
func dayItemMap(it DayItem) map[string]interface{} {
	return map[string]interface{}{
		"date":              it.Date,
		"location":          it.Location,
		"start":             it.Start,
		"end":               it.End,
		"demand":            it.Demand,
		"needs_experienced": it.NeedsExperienced,
	}
}

// canonicalJSON 序列化为无多余空白、不转义HTML的紧凑 JSON
func canonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sortDayItems(items []DayItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.Demand != b.Demand {
			return a.Demand < b.Demand
		}
		return !a.NeedsExperienced && b.NeedsExperienced
	})
}

func sortTemplateItems(items []TemplateItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.Demand != b.Demand {
			return a.Demand < b.Demand
		}
		return !a.NeedsExperienced && b.NeedsExperienced
	})
}

// CoerceSlots 宽容地解析可用时段输入
// 接受 null、单个对象或对象数组（JSON 原文），归一化并丢弃无效时段。
func CoerceSlots(raw json.RawMessage) []Slot {
	if len(raw) == 0 {
		return []Slot{}
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Slot{}
	}

	var list []Slot
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return []Slot{}
		}
	} else {
		var single Slot
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return []Slot{}
		}
		list = []Slot{single}
	}
	return ValidateSlots(list)
}

// ValidateSlots 归一化并校验时段列表，静默丢弃无效时段
func ValidateSlots(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		start := timeslot.NormHHMM(s.Start)
		end := timeslot.NormHHMM(s.End)
		if start == "" || end == "" {
			continue
		}
		t1, err1 := timeslot.ToMinutes(start)
		t2, err2 := timeslot.ToMinutes(end)
		if err1 != nil || err2 != nil || !timeslot.ValidInterval(t1, t2) {
			continue
		}
		out = append(out, Slot{Start: start, End: end})
	}
	return out
}
